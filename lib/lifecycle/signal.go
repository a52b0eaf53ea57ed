// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle provides typed, loop-confined notification signals.
//
// A [Signal] replaces ad-hoc callback fields: components that own a
// lifecycle expose one Signal per event, and interested parties connect
// listeners that can later be disconnected. Teardown is announced in two
// phases by pairing an "about to be destroyed" signal (resources still
// valid) with a "changed" signal (resources gone), so listeners can
// release per-connection state while the connection is still usable.
//
// Signals take no locks and must only be used from the event loop.
package lifecycle

// Signal is a list of listeners notified with a value of type T.
type Signal[T any] struct {
	listeners []*listener[T]
}

type listener[T any] struct {
	callback func(T)
	active   bool
}

// Connect registers callback and returns a function that disconnects
// it. Disconnecting more than once is harmless.
func (s *Signal[T]) Connect(callback func(T)) (disconnect func()) {
	entry := &listener[T]{callback: callback, active: true}
	s.listeners = append(s.listeners, entry)
	return func() { s.disconnect(entry) }
}

func (s *Signal[T]) disconnect(entry *listener[T]) {
	if !entry.active {
		return
	}
	entry.active = false
	remaining := s.listeners[:0]
	for _, existing := range s.listeners {
		if existing != entry {
			remaining = append(remaining, existing)
		}
	}
	s.listeners = remaining
}

// Emit calls every connected listener in connection order. Listeners
// disconnected by an earlier listener during the same Emit are skipped;
// listeners connected during Emit are not called until the next Emit.
func (s *Signal[T]) Emit(value T) {
	snapshot := make([]*listener[T], len(s.listeners))
	copy(snapshot, s.listeners)
	for _, entry := range snapshot {
		if entry.active {
			entry.callback(value)
		}
	}
}

// Len returns the number of connected listeners.
func (s *Signal[T]) Len() int { return len(s.listeners) }
