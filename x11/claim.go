// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package x11

import (
	"errors"
	"fmt"

	"github.com/jezek/xgb/xproto"
)

// ErrSelectionOwned is returned by ClaimWindowManager when another
// client owns WM_S0 and force is false.
var ErrSelectionOwned = errors.New("selection already owned")

// OwnershipClaim records the compositor's ownership of a manager
// selection. It lives until the connection closes.
type OwnershipClaim struct {
	Selection xproto.Atom
	Window    xproto.Window

	// PreviousOwner is the window that owned the selection before the
	// claim, or xproto.WindowNone.
	PreviousOwner xproto.Window
}

// ClaimWindowManager takes ownership of WM_S0 on behalf of the
// compositor. With force set, an existing owner is replaced rather than
// treated as an error. On success the ICCCM MANAGER client message is
// broadcast on the root window.
func (c *Connection) ClaimWindowManager(force bool) (*OwnershipClaim, error) {
	selection := c.Atoms.WMS0

	previous, err := c.Conn.SelectionOwner(selection)
	if err != nil {
		return nil, fmt.Errorf("querying WM_S0 owner: %w", err)
	}
	if previous != xproto.WindowNone {
		if !force {
			return nil, fmt.Errorf("WM_S0 owned by window 0x%x: %w", previous, ErrSelectionOwned)
		}
		c.logger.Warn("replacing existing window manager selection owner",
			"selection", "WM_S0",
			"previous_owner", fmt.Sprintf("0x%x", previous),
		)
	}

	window, err := c.Conn.CreateWindow(c.Root(), xproto.EventMaskPropertyChange)
	if err != nil {
		return nil, fmt.Errorf("creating WM_S0 owner window: %w", err)
	}

	if err := c.Conn.SetSelectionOwner(window, selection, xproto.TimeCurrentTime); err != nil {
		c.Conn.DestroyWindow(window)
		return nil, fmt.Errorf("setting WM_S0 owner: %w", err)
	}
	owner, err := c.Conn.SelectionOwner(selection)
	if err != nil {
		c.Conn.DestroyWindow(window)
		return nil, fmt.Errorf("verifying WM_S0 owner: %w", err)
	}
	if owner != window {
		c.Conn.DestroyWindow(window)
		return nil, fmt.Errorf("WM_S0 owner is 0x%x after claim, want 0x%x", owner, window)
	}

	announcement := xproto.ClientMessageEvent{
		Format: 32,
		Window: c.Root(),
		Type:   c.Atoms.Manager,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime),
			uint32(selection),
			uint32(window),
			0,
			0,
		}),
	}
	if err := c.Conn.SendEvent(c.Root(), xproto.EventMaskStructureNotify, announcement.Bytes()); err != nil {
		return nil, fmt.Errorf("announcing WM_S0 owner: %w", err)
	}

	c.claim = &OwnershipClaim{
		Selection:     selection,
		Window:        window,
		PreviousOwner: previous,
	}
	c.logger.Info("claimed window manager selection",
		"selection", "WM_S0",
		"window", fmt.Sprintf("0x%x", window),
	)
	return c.claim, nil
}
