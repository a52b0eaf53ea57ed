// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xwayland

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/bureau-foundation/xwl/selection"
	"github.com/bureau-foundation/xwl/x11"
)

// continueStartup runs once Xwayland has reported its display.
func (s *Supervisor) continueStartup() {
	if err := s.createConnection(); err != nil {
		s.logger.Error("connecting to Xwayland", "error", err)
		s.CriticalError.Emit(CodeLaunchFailed)
		return
	}

	// The display is private to this session, so a previous owner is
	// only tolerated, never expected.
	if _, err := s.connection.ClaimWindowManager(true); err != nil {
		s.logger.Error("claiming WM_S0", "error", err)
	}

	bridge, err := selection.NewBridge(s.application, s.connection, s.server)
	if err != nil {
		s.logger.Error("creating selection bridge", "error", err)
	} else {
		s.bridge = bridge
		s.removeBridgeFilter = s.application.Filters.Install(bridge)
	}

	s.application.Setenv("DISPLAY", s.display)
	s.writeState()
	s.Started.Emit(struct{}{})

	// Surfaces asynchronous errors from the claim while recovery is
	// still cheap.
	if err := s.connection.Conn.Sync(); err != nil {
		s.logger.Warn("synchronizing with Xwayland", "error", err)
	}
}

// createConnection connects over the window-manager socket and
// publishes the connection on the compositor context.
func (s *Supervisor) createConnection() error {
	socket := s.windowManagerSocket
	s.windowManagerSocket = nil
	conn, err := s.dial(socket, s.logger)
	if err != nil {
		socket.Close()
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	connection, err := x11.Open(conn, s.logger)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	// Screen, root window, and atoms are valid before anyone hears
	// about the connection.
	s.application.AttachX11(connection)
	s.connection = connection
	s.installNotifier()
	s.application.PublishX11()
	return nil
}

func (s *Supervisor) destroyConnection() {
	if s.connection == nil {
		return
	}
	s.application.BeginX11Teardown()
	if err := s.connection.Close(); err != nil {
		s.logger.Debug("closing X11 connection", "error", err)
	}
	s.connection = nil
	s.application.DetachX11()
}

func (s *Supervisor) installNotifier() {
	loop := s.application.Loop
	s.notifier = loop.NewNotifier(s.dispatchEvents)
	s.connection.Conn.SetReadyFunc(s.notifier.Signal)
	s.hook = loop.AddDispatchHook(s.dispatchEvents)
}

func (s *Supervisor) uninstallNotifier() {
	if s.connection != nil {
		s.connection.Conn.SetReadyFunc(nil)
	}
	s.notifier.Close()
	s.notifier = nil
	s.hook.Remove()
	s.hook = nil
}

// dispatchEvents drains the X11 event queue through the compositor's
// filter chain. A broken connection stops the session.
func (s *Supervisor) dispatchEvents() {
	if s.connection == nil {
		s.logger.Warn("dispatching X11 events with no connection")
		return
	}
	conn := s.connection.Conn
	if err := conn.Err(); err != nil {
		s.logger.Warn("X11 connection broke", "error", err)
		s.Stop()
		return
	}
	for {
		event, err := conn.PollForEvent()
		if err != nil {
			s.logger.Debug("X11 protocol error", "error", err)
			continue
		}
		if event == nil {
			break
		}
		s.application.Filters.Dispatch(event)
		if s.connection == nil {
			// A filter stopped the session.
			return
		}
	}
	if err := conn.Flush(); err != nil {
		s.logger.Debug("flushing X11 connection", "error", err)
	}
}

func (s *Supervisor) writeState() {
	if s.options.StateFile == "" || s.process == nil {
		return
	}
	state := State{
		SessionID: uuid.NewString(),
		PID:       s.PID(),
		Display:   s.display,
		Program:   s.process.command.Path,
		StartedAt: s.clock.Now().UTC(),
	}
	if err := WriteState(s.options.StateFile, state); err != nil {
		s.logger.Warn("writing session state", "path", s.options.StateFile, "error", err)
		return
	}
	s.state = &state
}

func (s *Supervisor) removeState() {
	if s.state == nil {
		return
	}
	s.state = nil
	if err := RemoveState(s.options.StateFile); err != nil {
		s.logger.Warn("removing session state", "path", s.options.StateFile, "error", err)
	}
}

// Session returns the recorded state of the running session, or nil.
func (s *Supervisor) Session() *State { return s.state }
