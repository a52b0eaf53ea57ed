// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"testing"
	"time"

	"github.com/jezek/xgb/xproto"

	"github.com/bureau-foundation/xwl/lib/testutil"
	"github.com/bureau-foundation/xwl/native"
)

const legacyTarget X11Window = 0x800010

func (h *harness) dragMove(target Target, position Point) DragEventReply {
	h.t.Helper()
	var reply DragEventReply
	h.do(func() { reply = h.bridge.DragMoveFilter(target, position) })
	return reply
}

func (h *harness) startNativeDrag() xproto.Window {
	h.t.Helper()
	var proxy xproto.Window
	h.do(func() {
		proxy = h.bridge.DragAndDrop().Window()
		if err := h.server.StartClientDrag(h.server.NewClient(), native.TextSource("dragged")); err != nil {
			h.t.Errorf("StartClientDrag: %v", err)
		}
	})
	return proxy
}

func TestDragMoveWithoutDrag(t *testing.T) {
	h := newHarness(t)
	if got := h.dragMove(legacyTarget, Point{X: 1, Y: 1}); got != NotHandled {
		t.Errorf("DragMoveFilter with no drag = %v, want NotHandled", got)
	}
	if len(h.fake.SentEvents()) != 0 {
		t.Error("XDND messages sent without a drag")
	}
}

func TestNativeDragVisitsLegacyWindow(t *testing.T) {
	h := newHarness(t)
	proxy := h.startNativeDrag()

	if owner := h.fake.Owner(h.atoms.XdndSelection); owner != proxy {
		t.Fatalf("XdndSelection owner = 0x%x, want proxy 0x%x", owner, proxy)
	}

	if got := h.dragMove(legacyTarget, Point{X: 10, Y: 20}); got != LegacySideHandled {
		t.Errorf("DragMoveFilter over X window = %v, want LegacySideHandled", got)
	}
	enter := decodeClientMessage(t, h.nextSent("XdndEnter"))
	if enter.Type != h.atoms.XdndEnter || enter.Window != xproto.Window(legacyTarget) {
		t.Fatalf("first message = %+v, want XdndEnter to the target", enter)
	}
	if xproto.Window(enter.Data.Data32[0]) != proxy {
		t.Errorf("XdndEnter source = 0x%x, want proxy", enter.Data.Data32[0])
	}
	if version := enter.Data.Data32[1] >> 24; version != xdndVersion {
		t.Errorf("XdndEnter version = %d, want %d", version, xdndVersion)
	}
	if xproto.Atom(enter.Data.Data32[2]) != h.atoms.UTF8String {
		t.Errorf("first offered type = %d, want UTF8_STRING", enter.Data.Data32[2])
	}

	position := decodeClientMessage(t, h.nextSent("XdndPosition"))
	if position.Type != h.atoms.XdndPosition {
		t.Fatalf("second message type = %d, want XdndPosition", position.Type)
	}
	if got := position.Data.Data32[2]; got != 10<<16|20 {
		t.Errorf("XdndPosition coordinates = 0x%x, want 0x%x", got, 10<<16|20)
	}

	if got := h.dragMove(NativeSurface{Client: 7}, Point{}); got != NotHandled {
		t.Errorf("DragMoveFilter over native surface = %v, want NotHandled", got)
	}
	if leave := decodeClientMessage(t, h.nextSent("XdndLeave")); leave.Type != h.atoms.XdndLeave {
		t.Errorf("message after leaving = %d, want XdndLeave", leave.Type)
	}

	// Cancelled over a native surface: ownership is released at once.
	h.do(h.server.EndDrag)
	if owner := h.fake.Owner(h.atoms.XdndSelection); owner != xproto.WindowNone {
		t.Errorf("XdndSelection owner after drag end = 0x%x, want none", owner)
	}
}

func TestNativeDropOnLegacyWindow(t *testing.T) {
	h := newHarness(t)
	proxy := h.startNativeDrag()

	h.dragMove(legacyTarget, Point{X: 5, Y: 5})
	h.nextSent("XdndEnter")
	h.nextSent("XdndPosition")

	h.fake.Push(xproto.ClientMessageEvent{
		Format: 32,
		Window: proxy,
		Type:   h.atoms.XdndStatus,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(legacyTarget), 1, 0, 0, uint32(h.atoms.XdndActionCopy)}),
	})
	h.do(h.server.EndDrag)

	drop := decodeClientMessage(t, h.nextSent("XdndDrop"))
	if drop.Type != h.atoms.XdndDrop || drop.Window != xproto.Window(legacyTarget) {
		t.Fatalf("message after drop = %+v, want XdndDrop to the target", drop)
	}
	if owner := h.fake.Owner(h.atoms.XdndSelection); owner != proxy {
		t.Errorf("XdndSelection released before XdndFinished")
	}

	h.fake.Push(xproto.ClientMessageEvent{
		Format: 32,
		Window: proxy,
		Type:   h.atoms.XdndFinished,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(legacyTarget), 1, 0, 0, 0}),
	})
	var owner Side
	h.do(func() { owner = h.bridge.DragAndDrop().Owner() })
	if owner != SideNone {
		t.Errorf("Owner() after XdndFinished = %v, want none", owner)
	}
	if xOwner := h.fake.Owner(h.atoms.XdndSelection); xOwner != xproto.WindowNone {
		t.Errorf("XdndSelection owner after XdndFinished = 0x%x, want none", xOwner)
	}
}

func TestLegacyDragBecomesNativeDrag(t *testing.T) {
	h := newHarness(t)
	drags := make(chan *native.Drag, 4)
	h.do(func() {
		h.server.OnDragChanged(func(drag *native.Drag) { drags <- drag })
	})

	h.fake.ForeignSelectionData(h.atoms.XdndSelection, h.atoms.Targets, xproto.AtomAtom, 32, encodeAtoms(h.atoms.UTF8String))
	h.fake.ForeignClaim(h.atoms.XdndSelection, 0x800020, 50)

	drag := testutil.RequireReceive(t, drags, 5*time.Second, "waiting for the native drag")
	if drag == nil || drag.Client != h.server.InternalClient() {
		t.Fatalf("drag = %+v, want one owned by the internal client", drag)
	}

	if got := h.dragMove(legacyTarget, Point{}); got != LegacySideHandled {
		t.Errorf("legacy drag over X window = %v, want LegacySideHandled", got)
	}
	if got := h.dragMove(NativeSurface{Client: 7}, Point{}); got != NativeSideHandled {
		t.Errorf("legacy drag over native surface = %v, want NativeSideHandled", got)
	}
	if len(h.fake.SentEvents()) != 0 {
		t.Error("XDND messages sent for a drag the X server is running")
	}

	data, err := native.ReadAll(drag.Source, "text/plain;charset=utf-8")
	if err != nil || len(data) != 0 {
		t.Errorf("ReadAll = (%q, %v), want empty (no data registered)", data, err)
	}
}

func TestNativeDragOverNothing(t *testing.T) {
	h := newHarness(t)
	h.startNativeDrag()

	if got := h.dragMove(nil, Point{X: 3, Y: 4}); got != NotHandled {
		t.Errorf("DragMoveFilter over no target = %v, want NotHandled", got)
	}
	if sent := h.fake.SentEvents(); len(sent) != 0 {
		t.Errorf("%d XDND messages sent with no target under the pointer", len(sent))
	}

	if got := h.dragMove(legacyTarget, Point{X: 3, Y: 4}); got != LegacySideHandled {
		t.Fatalf("DragMoveFilter over X window = %v, want LegacySideHandled", got)
	}
	h.nextSent("XdndEnter")
	h.nextSent("XdndPosition")

	if got := h.dragMove(nil, Point{}); got != NotHandled {
		t.Errorf("DragMoveFilter after leaving = %v, want NotHandled", got)
	}
	leave := decodeClientMessage(t, h.nextSent("XdndLeave"))
	if leave.Type != h.atoms.XdndLeave || leave.Window != xproto.Window(legacyTarget) {
		t.Errorf("message after leaving = %+v, want XdndLeave to the target", leave)
	}
}
