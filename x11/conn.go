// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package x11

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// Screen describes the default screen of a connection.
type Screen struct {
	Number     int
	Root       xproto.Window
	RootVisual xproto.Visualid
}

// Property is the content of a window property.
type Property struct {
	Type   xproto.Atom
	Format byte
	Value  []byte

	// BytesAfter is non-zero when the property was longer than the
	// requested length.
	BytesAfter uint32
}

// Conn is the subset of the X11 protocol the compositor uses.
//
// Requests that have no reply are sent unchecked; their protocol
// errors arrive through PollForEvent. Requests with replies block the
// caller for one round trip.
type Conn interface {
	// DefaultScreen returns the screen chosen at connection setup.
	DefaultScreen() Screen

	// InternAtoms interns names in one pipelined batch and returns the
	// atoms in the same order.
	InternAtoms(names []string) ([]xproto.Atom, error)

	// AtomName returns the name of an atom.
	AtomName(atom xproto.Atom) (string, error)

	// PollForEvent returns the next queued event or protocol error
	// without blocking. Returns (nil, nil) when the queue is empty.
	PollForEvent() (xgb.Event, error)

	// Err reports a fatal connection error (the server closed the
	// socket or a read failed). Nil while the connection is healthy.
	Err() error

	// SetReadyFunc registers a callback invoked from the connection's
	// reader goroutine whenever new input may be available and when
	// the connection fails. The callback must not block.
	SetReadyFunc(ready func())

	// Flush pushes buffered requests to the server.
	Flush() error

	// CreateWindow creates an unmapped input-only child of parent that
	// selects eventMask.
	CreateWindow(parent xproto.Window, eventMask uint32) (xproto.Window, error)

	// DestroyWindow destroys a window created by CreateWindow.
	DestroyWindow(window xproto.Window) error

	// SetSelectionOwner makes owner the owner of selection.
	SetSelectionOwner(owner xproto.Window, selection xproto.Atom, time xproto.Timestamp) error

	// SelectionOwner returns the current owner of selection, or
	// xproto.WindowNone.
	SelectionOwner(selection xproto.Atom) (xproto.Window, error)

	// SelectSelectionInput asks for XFIXES selection notifications on
	// selection, delivered to window.
	SelectSelectionInput(window xproto.Window, selection xproto.Atom, mask uint32) error

	// ConvertSelection asks the owner of selection to store target on
	// requestor's property.
	ConvertSelection(requestor xproto.Window, selection, target, property xproto.Atom, time xproto.Timestamp) error

	// GetProperty reads a whole property, optionally deleting it.
	GetProperty(window xproto.Window, property xproto.Atom, remove bool) (*Property, error)

	// ChangeProperty replaces a property.
	ChangeProperty(window xproto.Window, property, kind xproto.Atom, format byte, data []byte) error

	// SendEvent sends a 32-byte encoded event to destination.
	SendEvent(destination xproto.Window, mask uint32, event []byte) error

	// SetInputFocusPointerRoot hands keyboard focus back to the
	// pointer root.
	SetInputFocusPointerRoot() error

	// Sync performs a round trip, guaranteeing every earlier request
	// has been processed by the server.
	Sync() error

	// Close disconnects. Idempotent.
	Close() error
}
