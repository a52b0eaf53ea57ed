// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"fmt"
	"log/slog"

	"github.com/jezek/xgb"

	"github.com/bureau-foundation/xwl/compositor"
	"github.com/bureau-foundation/xwl/native"
	"github.com/bureau-foundation/xwl/x11"
)

// Bridge owns the native data device and the two selection channels
// for one X session. Exactly one Bridge exists per session; it must be
// closed before the X connection it borrows.
type Bridge struct {
	application *compositor.Context
	connection  *x11.Connection
	server      native.Server
	logger      *slog.Logger

	device native.DataDevice

	// cancelPending disconnects the one-shot device registration. Nil
	// once the server-side device has been matched.
	cancelPending func()

	clipboard *Clipboard
	dnd       *DragAndDrop
	closed    bool
}

// NewBridge creates the internal client's data device and waits for
// the server to publish the matching server-side device. The channels
// are created once it does, which may be during this call.
func NewBridge(application *compositor.Context, connection *x11.Connection, server native.Server) (*Bridge, error) {
	bridge := &Bridge{
		application: application,
		connection:  connection,
		server:      server,
		logger:      application.Logger.With("component", "selection"),
	}

	// Register before creating the handle so the announcement cannot be
	// missed.
	bridge.cancelPending = server.OnDataDeviceCreated(bridge.deviceCreated)
	device, err := server.CreateDataDevice()
	if err != nil {
		bridge.cancelPending()
		bridge.cancelPending = nil
		return nil, fmt.Errorf("creating data device: %w", err)
	}
	bridge.device = device
	server.Dispatch()
	return bridge, nil
}

func (b *Bridge) deviceCreated(device native.ServerDataDevice) {
	if b.cancelPending == nil || device.Client() != b.server.InternalClient() {
		return
	}
	b.cancelPending()
	b.cancelPending = nil
	b.init()
}

func (b *Bridge) init() {
	params := channelParams{
		connection: b.connection,
		device:     b.device,
		loop:       b.application.Loop,
		logger:     b.logger,
	}

	clipboard, err := newClipboard(params, b.server)
	if err != nil {
		b.logger.Error("creating clipboard channel", "error", err)
	} else {
		b.clipboard = clipboard
	}
	dnd, err := newDragAndDrop(params, b.server)
	if err != nil {
		b.logger.Error("creating drag-and-drop channel", "error", err)
	} else {
		b.dnd = dnd
	}
	b.logger.Debug("selection bridge ready")
	b.server.Dispatch()
}

// Ready reports whether the server-side device has been matched and
// the channels exist.
func (b *Bridge) Ready() bool { return b.cancelPending == nil && !b.closed }

// Clipboard returns the clipboard channel, or nil before the bridge is
// ready.
func (b *Bridge) Clipboard() *Clipboard { return b.clipboard }

// DragAndDrop returns the drag-and-drop channel, or nil before the
// bridge is ready.
func (b *Bridge) DragAndDrop() *DragAndDrop { return b.dnd }

// FilterEvent offers event to the clipboard channel, then to the
// drag-and-drop channel. The first channel that consumes it wins.
func (b *Bridge) FilterEvent(event xgb.Event) bool {
	if b.closed {
		return false
	}
	if b.clipboard != nil && b.clipboard.FilterEvent(event) {
		return true
	}
	if b.dnd != nil && b.dnd.FilterEvent(event) {
		return true
	}
	return false
}

// DragMoveFilter delegates to the drag-and-drop channel. Returns
// NotHandled while there is none.
func (b *Bridge) DragMoveFilter(target Target, position Point) DragEventReply {
	if b.closed || b.dnd == nil {
		return NotHandled
	}
	return b.dnd.DragMoveFilter(target, position)
}

// Close tears down the channels, then the data device. Idempotent.
func (b *Bridge) Close() {
	if b.closed {
		return
	}
	b.closed = true
	if b.cancelPending != nil {
		b.cancelPending()
		b.cancelPending = nil
	}
	if b.dnd != nil {
		b.dnd.Close()
		b.dnd = nil
	}
	if b.clipboard != nil {
		b.clipboard.Close()
		b.clipboard = nil
	}
	if b.device != nil {
		b.device.Close()
	}
	b.logger.Debug("selection bridge closed")
}
