// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package x11

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jezek/xgb/xproto"
)

// Connection is the compositor's window-manager connection to the
// legacy X server.
type Connection struct {
	Conn   Conn
	Screen Screen
	Atoms  *Atoms

	claim  *OwnershipClaim
	logger *slog.Logger
	closed bool
}

// Open reads the default screen and interns the atom table. The
// connection is not usable until Open succeeds; on failure conn is left
// open for the caller to close.
func Open(conn Conn, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := conn.Err(); err != nil {
		return nil, fmt.Errorf("X11 connection has an error: %w", err)
	}
	atoms, err := InternAtoms(conn)
	if err != nil {
		return nil, fmt.Errorf("interning atoms: %w", err)
	}
	return &Connection{
		Conn:   conn,
		Screen: conn.DefaultScreen(),
		Atoms:  atoms,
		logger: logger,
	}, nil
}

// Root returns the root window of the default screen.
func (c *Connection) Root() xproto.Window { return c.Screen.Root }

// Claim returns the window-manager ownership claim, or nil.
func (c *Connection) Claim() *OwnershipClaim { return c.claim }

// Close hands input focus back to the pointer root and disconnects.
// Selection ownerships, including the window-manager claim, are
// released by the server when the client goes away. Idempotent.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.Conn.Err() == nil {
		if err := c.Conn.SetInputFocusPointerRoot(); err != nil {
			errs = append(errs, fmt.Errorf("resetting input focus: %w", err))
		}
		if err := c.Conn.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flushing: %w", err))
		}
	}
	if err := c.Conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("disconnecting: %w", err))
	}
	c.claim = nil
	return errors.Join(errs...)
}
