// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/bureau-foundation/xwl/native"
)

// xdndVersion is the XDND protocol version spoken to X clients.
const xdndVersion = 5

// DragAndDrop bridges XdndSelection and native drags.
//
// A drag started by an X client becomes a native drag owned by the
// internal client; the X server keeps handling pointer motion over its
// own windows. A drag started by a native client is offered to X
// windows under the pointer through XDND client messages sent from the
// proxy window.
type DragAndDrop struct {
	*channel
	server     native.Server
	disconnect func()

	drag  *native.Drag
	visit *visit

	// dropTarget is the X window a native drag was dropped on. The
	// proxy keeps owning XdndSelection until it reports XdndFinished.
	dropTarget xproto.Window
}

// visit is an X window under a native drag.
type visit struct {
	window   xproto.Window
	accepted bool
}

func newDragAndDrop(params channelParams, server native.Server) (*DragAndDrop, error) {
	base, err := newChannel(params, "dnd", params.connection.Atoms.XdndSelection)
	if err != nil {
		return nil, err
	}
	dnd := &DragAndDrop{channel: base, server: server}
	base.offerLegacy = func(source *legacySource) {
		if err := params.device.StartDrag(source); err != nil {
			base.logger.Warn("starting native drag for X client", "error", err)
		}
	}

	version := make([]byte, 4)
	xgb.Put32(version, xdndVersion)
	if err := base.conn.ChangeProperty(base.window, base.atoms.XdndAware, xproto.AtomAtom, 32, version); err != nil {
		base.close()
		return nil, fmt.Errorf("advertising XdndAware on proxy window: %w", err)
	}

	dnd.disconnect = server.OnDragChanged(dnd.dragChanged)
	return dnd, nil
}

func (d *DragAndDrop) dragChanged(drag *native.Drag) {
	if drag == nil {
		dropped := d.finishVisit()
		d.drag = nil
		if !dropped {
			d.releaseNative()
		}
		return
	}

	d.drag = drag
	if d.legacyOriginated() || drag.Source == nil {
		return
	}
	d.dropTarget = xproto.WindowNone
	d.claimForNative(drag.Source)
}

func (d *DragAndDrop) legacyOriginated() bool {
	return d.drag != nil && d.drag.Client == d.server.InternalClient()
}

// DragMoveFilter decides who handles a pointer motion during a drag.
func (d *DragAndDrop) DragMoveFilter(target Target, position Point) DragEventReply {
	if d.drag == nil || d.closed {
		return NotHandled
	}
	var window xproto.Window
	legacy := false
	if target != nil {
		window, legacy = target.LegacyWindow()
	}

	if d.legacyOriginated() {
		if legacy {
			return LegacySideHandled
		}
		return NativeSideHandled
	}

	if !legacy {
		d.leave()
		return NotHandled
	}
	if d.visit == nil || d.visit.window != window {
		d.leave()
		d.enter(window)
	}
	d.sendMessage(window, d.atoms.XdndPosition, [4]uint32{
		0,
		(uint32(position.X)&0xffff)<<16 | uint32(position.Y)&0xffff,
		uint32(xproto.TimeCurrentTime),
		uint32(d.atoms.XdndActionCopy),
	})
	return LegacySideHandled
}

func (d *DragAndDrop) enter(window xproto.Window) {
	d.visit = &visit{window: window}

	var targets []xproto.Atom
	if d.nativeSource != nil {
		for _, mime := range d.nativeSource.MimeTypes() {
			target, err := d.atoms.TargetForMime(d.conn, mime)
			if err == nil {
				targets = append(targets, target)
			}
		}
	}

	flags := uint32(xdndVersion) << 24
	if len(targets) > 3 {
		flags |= 1
		list := make([]byte, 4*len(targets))
		for i, target := range targets {
			xgb.Put32(list[4*i:], uint32(target))
		}
		if err := d.conn.ChangeProperty(d.window, d.atoms.XdndTypeList, xproto.AtomAtom, 32, list); err != nil {
			d.logger.Warn("publishing XdndTypeList", "error", err)
		}
	}
	var data [4]uint32
	data[0] = flags
	for i := 0; i < 3 && i < len(targets); i++ {
		data[i+1] = uint32(targets[i])
	}
	d.sendMessage(window, d.atoms.XdndEnter, data)
}

func (d *DragAndDrop) leave() {
	if d.visit == nil {
		return
	}
	d.sendMessage(d.visit.window, d.atoms.XdndLeave, [4]uint32{})
	d.visit = nil
}

// finishVisit ends the visit when the native drag ends. The drop is
// delivered only if the window accepted it. Reports whether a drop was
// sent.
func (d *DragAndDrop) finishVisit() bool {
	if d.visit == nil {
		return false
	}
	if !d.visit.accepted {
		d.leave()
		return false
	}
	d.dropTarget = d.visit.window
	d.sendMessage(d.visit.window, d.atoms.XdndDrop, [4]uint32{0, uint32(xproto.TimeCurrentTime)})
	d.visit = nil
	return true
}

// sendMessage sends an XDND client message whose first word is the
// proxy window.
func (d *DragAndDrop) sendMessage(window xproto.Window, kind xproto.Atom, data [4]uint32) {
	message := xproto.ClientMessageEvent{
		Format: 32,
		Window: window,
		Type:   kind,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(d.window), data[0], data[1], data[2], data[3],
		}),
	}
	if err := d.conn.SendEvent(window, xproto.EventMaskNoEvent, message.Bytes()); err != nil {
		d.logger.Warn("sending XDND message", "window", window, "error", err)
	}
}

func (d *DragAndDrop) clientMessage(message xproto.ClientMessageEvent) bool {
	if message.Format != 32 {
		return false
	}
	data := message.Data.Data32
	from := xproto.Window(data[0])
	switch message.Type {
	case d.atoms.XdndStatus:
		if d.visit != nil && d.visit.window == from {
			d.visit.accepted = data[1]&1 != 0
		}
		return true
	case d.atoms.XdndFinished:
		if d.dropTarget != xproto.WindowNone && d.dropTarget == from {
			d.dropTarget = xproto.WindowNone
			if d.drag == nil {
				d.releaseNative()
			}
		}
		return true
	}
	return false
}

// FilterEvent consumes XDND client messages sent to the proxy window
// and XdndSelection events.
func (d *DragAndDrop) FilterEvent(event xgb.Event) bool {
	if d.closed {
		return false
	}
	if message, ok := event.(xproto.ClientMessageEvent); ok && message.Window == d.window {
		return d.clientMessage(message)
	}
	return d.filterEvent(event)
}

// Close leaves any visited X window and releases XdndSelection.
func (d *DragAndDrop) Close() {
	if d.closed {
		return
	}
	if d.disconnect != nil {
		d.disconnect()
		d.disconnect = nil
	}
	d.leave()
	d.drag = nil
	d.close()
}
