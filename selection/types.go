// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"fmt"

	"github.com/jezek/xgb/xproto"

	"github.com/bureau-foundation/xwl/native"
)

// Side identifies which protocol owns a selection.
type Side int

const (
	SideNone Side = iota
	SideNative
	SideLegacy
)

func (s Side) String() string {
	switch s {
	case SideNone:
		return "none"
	case SideNative:
		return "native"
	case SideLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// DragEventReply tells the pointer dispatcher who handled a drag
// motion event.
type DragEventReply int

const (
	// NotHandled lets the dispatcher continue its default handling.
	NotHandled DragEventReply = iota

	// NativeSideHandled means the native drag machinery owns the
	// event.
	NativeSideHandled

	// LegacySideHandled means the X server owns the event.
	LegacySideHandled
)

func (r DragEventReply) String() string {
	switch r {
	case NotHandled:
		return "not-handled"
	case NativeSideHandled:
		return "native"
	case LegacySideHandled:
		return "legacy"
	default:
		return fmt.Sprintf("DragEventReply(%d)", int(r))
	}
}

// Point is a position in root window coordinates.
type Point struct {
	X, Y int
}

// Target is the surface under the pointer during a drag.
type Target interface {
	// LegacyWindow returns the X11 window backing the target when it
	// belongs to the X server.
	LegacyWindow() (xproto.Window, bool)
}

// X11Window is a drag target backed by an X11 window.
type X11Window xproto.Window

func (w X11Window) LegacyWindow() (xproto.Window, bool) { return xproto.Window(w), true }

// NativeSurface is a drag target owned by a native client.
type NativeSurface struct {
	Client native.ClientID
}

func (NativeSurface) LegacyWindow() (xproto.Window, bool) { return xproto.WindowNone, false }
