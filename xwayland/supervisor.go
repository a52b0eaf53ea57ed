// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xwayland

import (
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/bureau-foundation/xwl/compositor"
	"github.com/bureau-foundation/xwl/lib/clock"
	"github.com/bureau-foundation/xwl/lib/config"
	"github.com/bureau-foundation/xwl/lib/eventloop"
	"github.com/bureau-foundation/xwl/lib/fd"
	"github.com/bureau-foundation/xwl/lib/lifecycle"
	"github.com/bureau-foundation/xwl/native"
	"github.com/bureau-foundation/xwl/selection"
	"github.com/bureau-foundation/xwl/x11"
)

// Codes emitted through CriticalError.
const (
	// CodeLaunchFailed: a pipe, socket pair, native connection, the
	// process itself, or the X11 connection could not be created.
	CodeLaunchFailed = 1

	// CodeDuplicateFailed: a descriptor could not be duplicated for
	// the child.
	CodeDuplicateFailed = 20
)

var (
	// ErrLaunch wraps every error returned by Start.
	ErrLaunch = errors.New("launching Xwayland")

	// ErrAlreadyRunning is returned by Start while a process is
	// supervised.
	ErrAlreadyRunning = errors.New("Xwayland is already running")

	// ErrConnection wraps failures to connect to a started Xwayland.
	ErrConnection = errors.New("connecting to Xwayland")
)

// DefaultTerminationTimeout bounds the wait after SIGTERM when the
// configuration does not set one.
const DefaultTerminationTimeout = 5 * time.Second

// DialFunc opens the window-manager connection over the compositor's
// end of the socket pair. It consumes socket.
type DialFunc func(socket *fd.Owned, logger *slog.Logger) (x11.Conn, error)

func dialXGB(socket *fd.Owned, logger *slog.Logger) (x11.Conn, error) {
	conn, err := x11.Dial(socket, logger)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options configures a Supervisor.
type Options struct {
	// Xwayland selects the program, search paths, extra arguments, and
	// termination timeout.
	Xwayland config.XwaylandConfig

	// StateFile is where the running session is recorded. Empty
	// disables it.
	StateFile string

	// Clock times the termination wait. Default: clock.Real().
	Clock clock.Clock

	// Dial opens the window-manager connection. Default: x11.Dial.
	Dial DialFunc

	// Stderr receives Xwayland's standard error. Default: os.Stderr.
	Stderr *os.File
}

// Supervisor runs one Xwayland session at a time.
type Supervisor struct {
	application *compositor.Context
	server      native.Server
	options     Options
	logger      *slog.Logger
	clock       clock.Clock
	dial        DialFunc
	timeout     time.Duration

	// Started fires once the X11 connection, the window-manager claim,
	// and the selection bridge are in place.
	Started lifecycle.Signal[struct{}]

	// CriticalError fires with CodeLaunchFailed or CodeDuplicateFailed
	// when a session cannot be brought up.
	CriticalError lifecycle.Signal[int]

	// Stopped fires at the end of every Stop that tore a session down,
	// whether requested or caused by Xwayland exiting.
	Stopped lifecycle.Signal[struct{}]

	process *process

	// displayReader is the read end of the -displayfd pipe, open until
	// the display number arrives or the session stops.
	displayReader *os.File

	// windowManagerSocket is the compositor's end of the -wm socket
	// pair, consumed by the dial.
	windowManagerSocket *fd.Owned

	connection *x11.Connection
	notifier   *eventloop.Notifier
	hook       *eventloop.Hook

	bridge             *selection.Bridge
	removeBridgeFilter func()

	display string
	state   *State
}

// New returns an idle supervisor. server provides the native
// connection handed to Xwayland and the data device used by the
// selection bridge.
func New(application *compositor.Context, server native.Server, options Options) *Supervisor {
	supervisor := &Supervisor{
		application: application,
		server:      server,
		options:     options,
		logger:      application.Logger.With("component", "xwayland"),
		clock:       options.Clock,
		dial:        options.Dial,
		timeout:     DefaultTerminationTimeout,
	}
	if supervisor.clock == nil {
		supervisor.clock = clock.Real()
	}
	if supervisor.dial == nil {
		supervisor.dial = dialXGB
	}
	if options.Xwayland.Program == "" {
		supervisor.options.Xwayland.Program = "Xwayland"
	}
	if options.Xwayland.TerminationTimeout != "" {
		timeout, err := options.Xwayland.TerminationTimeoutDuration()
		if err != nil || timeout <= 0 {
			supervisor.logger.Warn("ignoring invalid termination timeout",
				"value", options.Xwayland.TerminationTimeout,
				"default", DefaultTerminationTimeout,
			)
		} else {
			supervisor.timeout = timeout
		}
	}
	return supervisor
}

// Running reports whether a process is supervised.
func (s *Supervisor) Running() bool { return s.process != nil }

// PID returns the supervised process ID, or 0.
func (s *Supervisor) PID() int {
	if s.process == nil {
		return 0
	}
	return s.process.command.Process.Pid
}

// Display returns the X11 display name (":N") once Xwayland has
// reported it, or "".
func (s *Supervisor) Display() string { return s.display }

// Connection returns the window-manager connection, or nil.
func (s *Supervisor) Connection() *x11.Connection { return s.connection }

// Bridge returns the selection bridge, or nil before Started.
func (s *Supervisor) Bridge() *selection.Bridge { return s.bridge }

// DragMoveFilter lets the selection bridge decide who handles a drag
// motion. Returns NotHandled while there is no bridge.
func (s *Supervisor) DragMoveFilter(target selection.Target, position selection.Point) selection.DragEventReply {
	if s.bridge == nil {
		return selection.NotHandled
	}
	return s.bridge.DragMoveFilter(target, position)
}

// Stop tears the session down. Safe to call at any point, including
// from inside an X11 event dispatch and more than once.
func (s *Supervisor) Stop() {
	if s.process == nil {
		return
	}
	s.logger.Debug("stopping Xwayland")

	// No X11 dispatch may run against a connection being destroyed,
	// and the wait below blocks the loop.
	s.uninstallNotifier()

	if s.bridge != nil {
		s.removeBridgeFilter()
		s.removeBridgeFilter = nil
		s.bridge.Close()
		s.bridge = nil
	}

	s.destroyConnection()

	running := s.process
	s.process = nil
	running.detach()
	if !running.hasExited() {
		if err := running.terminate(); err != nil {
			s.logger.Warn("sending SIGTERM to Xwayland", "pid", running.pid(), "error", err)
		}
		select {
		case <-running.exited:
		case <-s.clock.After(s.timeout):
			s.logger.Warn("Xwayland did not exit after SIGTERM",
				"pid", running.pid(),
				"timeout", s.timeout,
			)
		}
	}

	s.closeDisplayReader()
	if s.windowManagerSocket != nil {
		s.windowManagerSocket.Close()
		s.windowManagerSocket = nil
	}
	if s.display != "" {
		s.application.Unsetenv("DISPLAY")
		s.display = ""
	}
	s.removeState()

	// Downstream consumers may reference the native connection until
	// this point.
	s.server.DestroyXWaylandConnection()
	s.logger.Info("Xwayland stopped")
	s.Stopped.Emit(struct{}{})
}

func (s *Supervisor) closeDisplayReader() {
	if s.displayReader != nil {
		s.displayReader.Close()
		s.displayReader = nil
	}
}

// process is a started Xwayland child. exited is closed by the wait
// goroutine; waitErr is valid after that.
type process struct {
	command *exec.Cmd
	exited  chan struct{}
	waitErr error

	// detached is set (on the loop) when the supervisor stops caring
	// about this process; results posted afterwards are ignored.
	detached bool
}

func (p *process) pid() int { return p.command.Process.Pid }

func (p *process) detach() { p.detached = true }

func (p *process) hasExited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}
