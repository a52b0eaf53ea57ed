// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package native defines the compositor's native (Wayland) side of the
// data-transfer protocol as seen by the selection bridge.
//
// The bridge acts as a native client: it creates a [DataDevice] through
// the [Server] and later learns, asynchronously, which server-side
// device object corresponds to it by matching the device's client
// against [Server.InternalClient]. Selection and drag changes made by
// any native client are announced through the Server's signals.
//
// [Memory] is an in-process Server used by tests and by the standalone
// bridge binary.
package native

import (
	"os"

	"github.com/bureau-foundation/xwl/lib/fd"
)

// ClientID identifies a native client connection.
type ClientID uint64

// Source offers data in one or more mime types.
type Source interface {
	// MimeTypes lists the offered types, preferred first.
	MimeTypes() []string

	// Send writes the data for mime to destination and closes it.
	// Send must not block the caller: long writes happen on another
	// goroutine.
	Send(mime string, destination *os.File)
}

// DataDevice is the bridge's client-side handle on the data device.
type DataDevice interface {
	// SetSelection makes source the clipboard selection on behalf of
	// the bridge's client.
	SetSelection(source Source)

	// ClearSelection drops the selection if the bridge's client owns
	// it.
	ClearSelection()

	// StartDrag starts a drag whose data comes from source.
	StartDrag(source Source) error

	// Close destroys the handle.
	Close()
}

// ServerDataDevice is the compositor-side object created for a client's
// data device.
type ServerDataDevice interface {
	Client() ClientID
}

// Drag describes an active native drag.
type Drag struct {
	// Client started the drag.
	Client ClientID

	// Source provides the dragged data.
	Source Source
}

// Server is the native compositor endpoint. All methods are
// loop-confined.
type Server interface {
	// InternalClient is the client the bridge's handles belong to.
	InternalClient() ClientID

	// CreateDataDevice creates a data device for the internal client.
	// The matching ServerDataDevice is announced through
	// OnDataDeviceCreated during a later Dispatch.
	CreateDataDevice() (DataDevice, error)

	// OnDataDeviceCreated registers for server-side device creation.
	OnDataDeviceCreated(callback func(ServerDataDevice)) (disconnect func())

	// OnSelectionChanged registers for clipboard selection changes. The
	// callback receives nil when the selection is cleared.
	OnSelectionChanged(callback func(Source)) (disconnect func())

	// OnDragChanged registers for drag start (non-nil) and end (nil).
	OnDragChanged(callback func(*Drag)) (disconnect func())

	// Selection returns the current clipboard source, or nil.
	Selection() Source

	// Dispatch processes pending protocol work.
	Dispatch()

	// CreateXWaylandConnection returns the client end of a new native
	// connection for the legacy server. The caller owns it.
	CreateXWaylandConnection() (*fd.Owned, error)

	// DestroyXWaylandConnection tears down the connection created by
	// CreateXWaylandConnection. Idempotent.
	DestroyXWaylandConnection()
}
