// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned by Invoke when the loop has exited.
var ErrStopped = errors.New("event loop stopped")

// Loop executes posted tasks one at a time on the goroutine that calls
// Run. Post and Invoke are safe for concurrent use; everything else is
// loop-confined.
type Loop struct {
	mu    sync.Mutex
	tasks []func()

	// wake has capacity 1; a pending wake-up is never lost and never
	// queued twice.
	wake chan struct{}

	// stopped is closed when Run returns.
	stopped     chan struct{}
	stoppedOnce sync.Once

	hooks []*Hook
}

// New returns an idle loop. Call Run to start executing tasks.
func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Post queues task for execution on the loop. Never blocks. Tasks run in
// the order they were posted.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Invoke runs task on the loop and waits for it to finish. Must not be
// called from the loop itself.
func (l *Loop) Invoke(ctx context.Context, task func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		task()
	})
	select {
	case <-done:
		return nil
	case <-l.stopped:
		// The task may have run just before Run returned.
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped returns a channel closed once Run has returned.
func (l *Loop) Stopped() <-chan struct{} { return l.stopped }

// Run executes tasks until ctx is cancelled. Tasks already queued when
// ctx is cancelled are dropped. Run must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stoppedOnce.Do(func() { close(l.stopped) })

	for {
		l.runHooks()
		for l.runQueued() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		l.runHooks()
		if l.hasQueued() {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// runQueued executes the tasks queued at the time of the call. Returns
// false if there was nothing to run.
func (l *Loop) runQueued() bool {
	l.mu.Lock()
	batch := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	for _, task := range batch {
		task()
	}
	return len(batch) > 0
}

func (l *Loop) hasQueued() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks) > 0
}

// Hook is a registered dispatch hook.
type Hook struct {
	loop     *Loop
	callback func()
	removed  bool
}

// AddDispatchHook registers callback to run whenever the loop wakes up
// and right before it blocks waiting for new work. Loop-only.
func (l *Loop) AddDispatchHook(callback func()) *Hook {
	hook := &Hook{loop: l, callback: callback}
	l.hooks = append(l.hooks, hook)
	return hook
}

// Remove unregisters the hook. Idempotent. Loop-only.
func (h *Hook) Remove() {
	if h == nil || h.removed {
		return
	}
	h.removed = true
	hooks := h.loop.hooks[:0]
	for _, existing := range h.loop.hooks {
		if existing != h {
			hooks = append(hooks, existing)
		}
	}
	h.loop.hooks = hooks
}

func (l *Loop) runHooks() {
	if len(l.hooks) == 0 {
		return
	}
	snapshot := make([]*Hook, len(l.hooks))
	copy(snapshot, l.hooks)
	for _, hook := range snapshot {
		if !hook.removed {
			hook.callback()
		}
	}
}

// Notifier delivers readiness signals raised on arbitrary goroutines
// to a callback on the loop. Signals raised while a callback is already
// queued are coalesced into that callback.
type Notifier struct {
	loop     *Loop
	callback func()
	pending  atomic.Bool
	closed   atomic.Bool
}

// NewNotifier returns a notifier that runs callback on the loop after
// Signal is called.
func (l *Loop) NewNotifier(callback func()) *Notifier {
	return &Notifier{loop: l, callback: callback}
}

// Signal schedules the callback. Safe from any goroutine. No-op after
// Close.
func (n *Notifier) Signal() {
	if n.closed.Load() {
		return
	}
	if n.pending.CompareAndSwap(false, true) {
		n.loop.Post(n.fire)
	}
}

func (n *Notifier) fire() {
	n.pending.Store(false)
	if n.closed.Load() {
		return
	}
	n.callback()
}

// Close disables the notifier. A callback already queued becomes a
// no-op. Idempotent.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.closed.Store(true)
}
