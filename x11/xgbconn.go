// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package x11

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xfixes"
	"github.com/jezek/xgb/xproto"

	"github.com/bureau-foundation/xwl/lib/fd"
	"github.com/bureau-foundation/xwl/lib/logging"
)

// maxPropertyWords bounds a single GetProperty read, in 32-bit units.
const maxPropertyWords = 1 << 20

const (
	xfixesMajorVersion = 5
	xfixesMinorVersion = 0
)

var redirectLibraryLog sync.Once

// Dial performs the X11 handshake over socket and returns the
// connection. The socket is consumed whether or not Dial succeeds.
func Dial(socket *fd.Owned, logger *slog.Logger) (*XConn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	redirectLibraryLog.Do(func() {
		xgb.Logger = logging.StdLogger(logger, "xgb")
	})

	file, err := socket.File()
	if err != nil {
		return nil, fmt.Errorf("taking X11 socket: %w", err)
	}
	// FileConn duplicates the descriptor; the original is closed here.
	netConnection, err := net.FileConn(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("wrapping X11 socket: %w", err)
	}

	watched := &watchedConn{Conn: netConnection}
	connection, err := xgb.NewConnNet(watched)
	if err != nil {
		netConnection.Close()
		return nil, fmt.Errorf("X11 handshake: %w", err)
	}

	if err := xfixes.Init(connection); err != nil {
		connection.Close()
		return nil, fmt.Errorf("initializing XFIXES: %w", err)
	}
	version, err := xfixes.QueryVersion(connection, xfixesMajorVersion, xfixesMinorVersion).Reply()
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("XFIXES version handshake: %w", err)
	}
	if version.MajorVersion < xfixesMajorVersion {
		connection.Close()
		return nil, fmt.Errorf("XFIXES %d.%d is too old, need %d.%d",
			version.MajorVersion, version.MinorVersion, xfixesMajorVersion, xfixesMinorVersion)
	}

	setup := xproto.Setup(connection)
	screenInfo := setup.DefaultScreen(connection)

	return &XConn{
		connection: connection,
		watched:    watched,
		screen: Screen{
			Number:     connection.DefaultScreen,
			Root:       screenInfo.Root,
			RootVisual: screenInfo.RootVisual,
		},
	}, nil
}

// XConn is a Conn backed by github.com/jezek/xgb.
type XConn struct {
	connection *xgb.Conn
	watched    *watchedConn
	screen     Screen
	closeOnce  sync.Once
}

func (c *XConn) DefaultScreen() Screen { return c.screen }

func (c *XConn) InternAtoms(names []string) ([]xproto.Atom, error) {
	cookies := make([]xproto.InternAtomCookie, len(names))
	for i, name := range names {
		cookies[i] = xproto.InternAtom(c.connection, false, uint16(len(name)), name)
	}
	atoms := make([]xproto.Atom, len(names))
	for i, cookie := range cookies {
		reply, err := cookie.Reply()
		if err != nil {
			return nil, fmt.Errorf("interning %s: %w", names[i], err)
		}
		atoms[i] = reply.Atom
	}
	return atoms, nil
}

func (c *XConn) AtomName(atom xproto.Atom) (string, error) {
	reply, err := xproto.GetAtomName(c.connection, atom).Reply()
	if err != nil {
		return "", fmt.Errorf("getting name of atom %d: %w", atom, err)
	}
	return reply.Name, nil
}

func (c *XConn) PollForEvent() (xgb.Event, error) {
	event, protocolError := c.connection.PollForEvent()
	if protocolError != nil {
		return nil, protocolError
	}
	return event, nil
}

func (c *XConn) Err() error { return c.watched.Err() }

func (c *XConn) SetReadyFunc(ready func()) { c.watched.setReady(ready) }

// Flush is a no-op: xgb writes each request as soon as it is issued.
func (c *XConn) Flush() error { return nil }

func (c *XConn) CreateWindow(parent xproto.Window, eventMask uint32) (xproto.Window, error) {
	window, err := xproto.NewWindowId(c.connection)
	if err != nil {
		return xproto.WindowNone, fmt.Errorf("allocating window id: %w", err)
	}
	err = xproto.CreateWindowChecked(
		c.connection,
		0,
		window,
		parent,
		-1, -1, 1, 1,
		0,
		xproto.WindowClassInputOnly,
		0,
		xproto.CwEventMask,
		[]uint32{eventMask},
	).Check()
	if err != nil {
		return xproto.WindowNone, fmt.Errorf("creating window: %w", err)
	}
	return window, nil
}

func (c *XConn) DestroyWindow(window xproto.Window) error {
	xproto.DestroyWindow(c.connection, window)
	return nil
}

func (c *XConn) SetSelectionOwner(owner xproto.Window, selection xproto.Atom, time xproto.Timestamp) error {
	return xproto.SetSelectionOwnerChecked(c.connection, owner, selection, time).Check()
}

func (c *XConn) SelectionOwner(selection xproto.Atom) (xproto.Window, error) {
	reply, err := xproto.GetSelectionOwner(c.connection, selection).Reply()
	if err != nil {
		return xproto.WindowNone, err
	}
	return reply.Owner, nil
}

func (c *XConn) SelectSelectionInput(window xproto.Window, selection xproto.Atom, mask uint32) error {
	xfixes.SelectSelectionInput(c.connection, window, selection, mask)
	return nil
}

func (c *XConn) ConvertSelection(requestor xproto.Window, selection, target, property xproto.Atom, time xproto.Timestamp) error {
	xproto.ConvertSelection(c.connection, requestor, selection, target, property, time)
	return nil
}

func (c *XConn) GetProperty(window xproto.Window, property xproto.Atom, remove bool) (*Property, error) {
	reply, err := xproto.GetProperty(c.connection, remove, window, property, xproto.GetPropertyTypeAny, 0, maxPropertyWords).Reply()
	if err != nil {
		return nil, err
	}
	return &Property{
		Type:       reply.Type,
		Format:     reply.Format,
		Value:      reply.Value,
		BytesAfter: reply.BytesAfter,
	}, nil
}

func (c *XConn) ChangeProperty(window xproto.Window, property, kind xproto.Atom, format byte, data []byte) error {
	if format != 8 && format != 16 && format != 32 {
		return fmt.Errorf("invalid property format %d", format)
	}
	length := uint32(len(data) / int(format/8))
	xproto.ChangeProperty(c.connection, xproto.PropModeReplace, window, property, kind, format, length, data)
	return nil
}

func (c *XConn) SendEvent(destination xproto.Window, mask uint32, event []byte) error {
	xproto.SendEvent(c.connection, false, destination, mask, string(event))
	return nil
}

func (c *XConn) SetInputFocusPointerRoot() error {
	xproto.SetInputFocus(c.connection, xproto.InputFocusPointerRoot, xproto.InputFocusPointerRoot, xproto.TimeCurrentTime)
	return nil
}

func (c *XConn) Sync() error {
	_, err := xproto.GetInputFocus(c.connection).Reply()
	return err
}

func (c *XConn) Close() error {
	c.closeOnce.Do(c.connection.Close)
	return nil
}

// watchedConn reports input readiness and remembers the first read
// error. xgb reads on its own goroutine and queues parsed events; the
// readiness callback fires each time that goroutine comes back for
// more input, which is after everything read so far has been queued.
type watchedConn struct {
	net.Conn
	ready   atomic.Pointer[func()]
	failure atomic.Pointer[error]
}

func (w *watchedConn) Read(buffer []byte) (int, error) {
	w.notify()
	n, err := w.Conn.Read(buffer)
	if err != nil {
		w.failure.CompareAndSwap(nil, &err)
		w.notify()
	}
	return n, err
}

func (w *watchedConn) setReady(ready func()) {
	if ready == nil {
		w.ready.Store(nil)
		return
	}
	w.ready.Store(&ready)
}

func (w *watchedConn) notify() {
	if ready := w.ready.Load(); ready != nil {
		(*ready)()
	}
}

func (w *watchedConn) Err() error {
	if failure := w.failure.Load(); failure != nil {
		return *failure
	}
	return nil
}
