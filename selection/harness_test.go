// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"context"
	"testing"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/bureau-foundation/xwl/compositor"
	"github.com/bureau-foundation/xwl/lib/eventloop"
	"github.com/bureau-foundation/xwl/lib/testutil"
	"github.com/bureau-foundation/xwl/native"
	"github.com/bureau-foundation/xwl/x11"
)

// harness runs a bridge on a live event loop over a fake X server,
// pumping X events into the bridge the way the supervisor does.
type harness struct {
	t           *testing.T
	ctx         context.Context
	loop        *eventloop.Loop
	application *compositor.Context
	fake        *x11.FakeConn
	connection  *x11.Connection
	atoms       *x11.Atoms
	server      *native.Memory
	bridge      *Bridge

	// sent receives every event the bridge sends to X clients.
	sent chan x11.SentEvent
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	loop := eventloop.New()
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, loop.Stopped(), 5*time.Second, "stopping event loop")
	})

	fake := x11.NewFakeConn()
	connection, err := x11.Open(fake, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h := &harness{
		t:           t,
		ctx:         ctx,
		loop:        loop,
		application: compositor.New(loop, nil, nil),
		fake:        fake,
		connection:  connection,
		atoms:       connection.Atoms,
		server:      native.NewMemory(),
		sent:        make(chan x11.SentEvent, 32),
	}
	fake.SetSendHook(func(event x11.SentEvent) { h.sent <- event })

	var createErr error
	h.do(func() {
		notifier := loop.NewNotifier(h.pump)
		fake.SetReadyFunc(notifier.Signal)
		h.bridge, createErr = NewBridge(h.application, connection, h.server)
	})
	if createErr != nil {
		t.Fatalf("NewBridge: %v", createErr)
	}
	if !h.bridge.Ready() {
		t.Fatal("bridge not ready after construction with an in-process server")
	}
	return h
}

// do runs task on the loop and waits for it. Events queued by the fake
// before do is called have been delivered by the time it returns.
func (h *harness) do(task func()) {
	h.t.Helper()
	if err := h.loop.Invoke(h.ctx, task); err != nil {
		h.t.Fatalf("Invoke: %v", err)
	}
}

func (h *harness) pump() {
	for {
		event, _ := h.fake.PollForEvent()
		if event == nil {
			return
		}
		if h.bridge != nil {
			h.bridge.FilterEvent(event)
		}
	}
}

// nextSent waits for the next event sent to an X client.
func (h *harness) nextSent(description string) x11.SentEvent {
	h.t.Helper()
	return testutil.RequireReceive(h.t, h.sent, 5*time.Second, description)
}

func (h *harness) clipboardOwner() Side {
	h.t.Helper()
	var owner Side
	h.do(func() { owner = h.bridge.Clipboard().Owner() })
	return owner
}

func encodeAtoms(atoms ...xproto.Atom) []byte {
	value := make([]byte, 4*len(atoms))
	for i, atom := range atoms {
		xgb.Put32(value[4*i:], uint32(atom))
	}
	return value
}

func decodeAtoms(value []byte) []xproto.Atom {
	atoms := make([]xproto.Atom, 0, len(value)/4)
	for offset := 0; offset+4 <= len(value); offset += 4 {
		atoms = append(atoms, xproto.Atom(xgb.Get32(value[offset:])))
	}
	return atoms
}

func decodeSelectionNotify(t *testing.T, sent x11.SentEvent) xproto.SelectionNotifyEvent {
	t.Helper()
	notify, ok := xproto.SelectionNotifyEventNew(sent.Event).(xproto.SelectionNotifyEvent)
	if !ok {
		t.Fatalf("sent event is not a SelectionNotify: %v", sent.Event)
	}
	return notify
}

func decodeClientMessage(t *testing.T, sent x11.SentEvent) xproto.ClientMessageEvent {
	t.Helper()
	message, ok := xproto.ClientMessageEventNew(sent.Event).(xproto.ClientMessageEvent)
	if !ok {
		t.Fatalf("sent event is not a ClientMessage: %v", sent.Event)
	}
	return message
}
