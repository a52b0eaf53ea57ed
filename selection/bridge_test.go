// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"testing"

	"github.com/jezek/xgb/xfixes"
	"github.com/jezek/xgb/xproto"

	"github.com/bureau-foundation/xwl/compositor"
	"github.com/bureau-foundation/xwl/lib/eventloop"
	"github.com/bureau-foundation/xwl/native"
	"github.com/bureau-foundation/xwl/x11"
)

// heldServer delays server-side device announcements until released,
// as a compositor does when the announcement arrives on a later
// protocol round trip.
type heldServer struct {
	*native.Memory
	held bool
}

func (s *heldServer) Dispatch() {
	if !s.held {
		s.Memory.Dispatch()
	}
}

func newHeldBridge(t *testing.T) (*Bridge, *heldServer, *x11.FakeConn) {
	t.Helper()
	fake := x11.NewFakeConn()
	connection, err := x11.Open(fake, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	server := &heldServer{Memory: native.NewMemory(), held: true}
	application := compositor.New(eventloop.New(), nil, nil)

	// A device for another client is announced first and must not be
	// mistaken for the bridge's.
	server.CreateClientDevice(server.NewClient())

	bridge, err := NewBridge(application, connection, server)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	return bridge, server, fake
}

func TestBridgeWaitsForInternalDevice(t *testing.T) {
	bridge, server, fake := newHeldBridge(t)

	if bridge.Ready() {
		t.Fatal("bridge ready before the server-side device was announced")
	}
	if got := bridge.DragMoveFilter(X11Window(0x800001), Point{}); got != NotHandled {
		t.Errorf("DragMoveFilter before ready = %v, want NotHandled", got)
	}
	notify := xfixes.SelectionNotifyEvent{Selection: fake.Atom("CLIPBOARD"), Owner: 0x800001}
	if bridge.FilterEvent(notify) {
		t.Error("FilterEvent consumed an event before the channels exist")
	}

	server.held = false
	server.Dispatch()
	if !bridge.Ready() {
		t.Fatal("bridge not ready after the internal device was announced")
	}
	clipboard, dnd := bridge.Clipboard(), bridge.DragAndDrop()
	if clipboard == nil || dnd == nil {
		t.Fatal("channels not created")
	}
	if !fake.OwnsWindow(clipboard.Window()) || !fake.OwnsWindow(dnd.Window()) {
		t.Error("proxy windows not created")
	}

	// The registration is one-shot.
	server.CreateClientDevice(server.InternalClient())
	server.Dispatch()
	if bridge.Clipboard() != clipboard {
		t.Error("second internal device announcement rebuilt the channels")
	}

	bridge.Close()
	bridge.Close()
	if fake.OwnsWindow(clipboard.Window()) || fake.OwnsWindow(dnd.Window()) {
		t.Error("proxy windows survived Close")
	}
	if bridge.FilterEvent(notify) {
		t.Error("closed bridge consumed an event")
	}
}

func TestBridgeClosedBeforeDeviceAnnounced(t *testing.T) {
	bridge, server, _ := newHeldBridge(t)
	bridge.Close()

	server.held = false
	server.Dispatch()
	if bridge.Clipboard() != nil || bridge.DragAndDrop() != nil {
		t.Error("channels created after the bridge was closed")
	}
}

func TestBridgeFilterEvent(t *testing.T) {
	h := newHarness(t)

	h.do(func() {
		if h.bridge.FilterEvent(xproto.MapNotifyEvent{Window: 0x800001}) {
			t.Error("bridge consumed an unrelated event")
		}
		foreign := xfixes.SelectionNotifyEvent{
			Window:    h.bridge.Clipboard().Window(),
			Selection: h.atoms.Clipboard,
			Owner:     xproto.WindowNone,
		}
		if !h.bridge.FilterEvent(foreign) {
			t.Error("clipboard owner notification not consumed")
		}
		// A notification for another client's window is not ours.
		foreign.Window = 0x800099
		if h.bridge.FilterEvent(foreign) {
			t.Error("notification for another window consumed")
		}
	})
}

func TestBridgeCloseReleasesSelections(t *testing.T) {
	h := newHarness(t)

	var proxy xproto.Window
	h.do(func() {
		proxy = h.bridge.Clipboard().Window()
		h.server.SetClientSelection(h.server.NewClient(), native.TextSource("copied"))
	})
	if owner := h.fake.Owner(h.atoms.Clipboard); owner != proxy {
		t.Fatalf("CLIPBOARD owner = 0x%x, want proxy 0x%x", owner, proxy)
	}

	h.do(h.bridge.Close)
	if owner := h.fake.Owner(h.atoms.Clipboard); owner != xproto.WindowNone {
		t.Errorf("CLIPBOARD owner after Close = 0x%x, want none", owner)
	}
	if h.fake.OwnsWindow(proxy) {
		t.Error("proxy window survived Close")
	}

	// Native selection changes are no longer followed.
	h.do(func() {
		h.server.SetClientSelection(h.server.NewClient(), native.TextSource("after close"))
	})
	if owner := h.fake.Owner(h.atoms.Clipboard); owner != xproto.WindowNone {
		t.Errorf("closed bridge claimed CLIPBOARD: 0x%x", owner)
	}
}
