// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package native

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/xwl/lib/fd"
	"github.com/bureau-foundation/xwl/lib/lifecycle"
)

// ErrConnectionExists is returned by CreateXWaylandConnection while a
// previous connection is still alive.
var ErrConnectionExists = errors.New("xwayland connection already exists")

// ConnectionFactory creates the client end of a native connection.
type ConnectionFactory func() (*fd.Owned, error)

// Memory is an in-process Server. Clients other than the internal one
// are simulated with NewClient, SetClientSelection, and the drag
// methods.
type Memory struct {
	logger   *slog.Logger
	internal ClientID
	clients  ClientID

	// announce holds server-side devices created since the last
	// Dispatch.
	announce []*serverDevice

	selection      Source
	selectionOwner ClientID
	drag           *Drag

	deviceCreated    lifecycle.Signal[ServerDataDevice]
	selectionChanged lifecycle.Signal[Source]
	dragChanged      lifecycle.Signal[*Drag]

	factory ConnectionFactory
	// serverEnd is the compositor side of a socketpair connection.
	serverEnd *fd.Owned
	connected bool
}

// MemoryOption configures a Memory server.
type MemoryOption func(*Memory)

// WithConnectionFactory makes CreateXWaylandConnection call factory
// instead of creating a socketpair.
func WithConnectionFactory(factory ConnectionFactory) MemoryOption {
	return func(m *Memory) { m.factory = factory }
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) { m.logger = logger }
}

// NewMemory returns an in-process server. Client 1 is the internal
// client.
func NewMemory(options ...MemoryOption) *Memory {
	m := &Memory{internal: 1, clients: 1}
	for _, option := range options {
		option(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

func (m *Memory) InternalClient() ClientID { return m.internal }

// NewClient registers a simulated native client.
func (m *Memory) NewClient() ClientID {
	m.clients++
	return m.clients
}

func (m *Memory) CreateDataDevice() (DataDevice, error) {
	m.CreateClientDevice(m.internal)
	return &memoryDevice{server: m}, nil
}

// CreateClientDevice queues a server-side device for client, announced
// on the next Dispatch.
func (m *Memory) CreateClientDevice(client ClientID) {
	m.announce = append(m.announce, &serverDevice{client: client})
}

func (m *Memory) OnDataDeviceCreated(callback func(ServerDataDevice)) func() {
	return m.deviceCreated.Connect(callback)
}

func (m *Memory) OnSelectionChanged(callback func(Source)) func() {
	return m.selectionChanged.Connect(callback)
}

func (m *Memory) OnDragChanged(callback func(*Drag)) func() {
	return m.dragChanged.Connect(callback)
}

func (m *Memory) Selection() Source { return m.selection }

// SelectionOwner returns the client that set the current selection.
func (m *Memory) SelectionOwner() ClientID { return m.selectionOwner }

// Dispatch announces server-side devices created since the last call.
func (m *Memory) Dispatch() {
	pending := m.announce
	m.announce = nil
	for _, device := range pending {
		m.deviceCreated.Emit(device)
	}
}

// SetClientSelection sets the selection on behalf of client. A nil
// source clears it.
func (m *Memory) SetClientSelection(client ClientID, source Source) {
	if source == nil && m.selection == nil {
		return
	}
	m.selection = source
	m.selectionOwner = client
	if source == nil {
		m.selectionOwner = 0
	}
	m.selectionChanged.Emit(source)
}

// StartClientDrag starts a drag on behalf of client.
func (m *Memory) StartClientDrag(client ClientID, source Source) error {
	if m.drag != nil {
		return fmt.Errorf("drag already in progress from client %d", m.drag.Client)
	}
	m.drag = &Drag{Client: client, Source: source}
	m.dragChanged.Emit(m.drag)
	return nil
}

// EndDrag ends the active drag, if any.
func (m *Memory) EndDrag() {
	if m.drag == nil {
		return
	}
	m.drag = nil
	m.dragChanged.Emit(nil)
}

// ActiveDrag returns the active drag, or nil.
func (m *Memory) ActiveDrag() *Drag { return m.drag }

func (m *Memory) CreateXWaylandConnection() (*fd.Owned, error) {
	if m.connected {
		return nil, ErrConnectionExists
	}
	if m.factory != nil {
		client, err := m.factory()
		if err != nil {
			return nil, err
		}
		m.connected = true
		return client, nil
	}

	serverEnd, clientEnd, err := fd.Socketpair("wayland")
	if err != nil {
		return nil, err
	}
	m.serverEnd = serverEnd
	m.connected = true
	return clientEnd, nil
}

func (m *Memory) DestroyXWaylandConnection() {
	if !m.connected {
		return
	}
	m.connected = false
	if err := m.serverEnd.Close(); err != nil {
		m.logger.Warn("closing xwayland connection", "error", err)
	}
	m.serverEnd = nil
	m.logger.Debug("xwayland connection destroyed")
}

// XWaylandConnected reports whether an Xwayland connection exists.
func (m *Memory) XWaylandConnected() bool { return m.connected }

type serverDevice struct {
	client ClientID
}

func (d *serverDevice) Client() ClientID { return d.client }

// memoryDevice is the internal client's handle.
type memoryDevice struct {
	server *Memory
	closed bool
}

func (d *memoryDevice) SetSelection(source Source) {
	if d.closed {
		return
	}
	d.server.SetClientSelection(d.server.internal, source)
}

func (d *memoryDevice) ClearSelection() {
	if d.closed || d.server.selectionOwner != d.server.internal {
		return
	}
	d.server.SetClientSelection(d.server.internal, nil)
}

func (d *memoryDevice) StartDrag(source Source) error {
	if d.closed {
		return errors.New("data device closed")
	}
	return d.server.StartClientDrag(d.server.internal, source)
}

func (d *memoryDevice) Close() { d.closed = true }
