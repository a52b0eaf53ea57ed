// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xwayland

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/bureau-foundation/xwl/lib/fd"
)

// launchError is a Start failure together with the critical code it is
// reported with.
type launchError struct {
	code int
	err  error
}

// Start launches Xwayland. The rest of the startup (X11 connection,
// WM_S0 claim, selection bridge) happens on the loop once Xwayland
// reports its display. When the launch itself fails, CriticalError has
// been emitted and nothing is retained.
func (s *Supervisor) Start() error {
	if s.process != nil {
		return fmt.Errorf("%w: %w", ErrLaunch, ErrAlreadyRunning)
	}
	if failure := s.launch(); failure != nil {
		s.logger.Error("Xwayland failed to start", "error", failure.err, "code", failure.code)
		s.CriticalError.Emit(failure.code)
		return fmt.Errorf("%w: %w", ErrLaunch, failure.err)
	}
	return nil
}

func (s *Supervisor) launch() *launchError {
	displayRead, displayWrite, err := fd.Pipe("xwayland-displayfd")
	if err != nil {
		return &launchError{CodeLaunchFailed, err}
	}
	// Every descriptor the child does not inherit is closed on return;
	// the ones the supervisor keeps are consumed before that.
	defer displayRead.Close()
	defer displayWrite.Close()

	windowManagerLocal, windowManagerRemote, err := fd.Socketpair("xwayland-wm")
	if err != nil {
		return &launchError{CodeLaunchFailed, err}
	}
	defer windowManagerRemote.Close()
	failed := true
	defer func() {
		if failed {
			windowManagerLocal.Close()
		}
	}()

	windowManagerChild, err := windowManagerRemote.Dup()
	if err != nil {
		return &launchError{CodeDuplicateFailed, err}
	}
	defer windowManagerChild.Close()

	waylandSocket, err := s.server.CreateXWaylandConnection()
	if err != nil {
		return &launchError{CodeLaunchFailed, fmt.Errorf("creating native connection: %w", err)}
	}
	defer waylandSocket.Close()

	waylandChild, err := waylandSocket.Dup()
	if err != nil {
		s.server.DestroyXWaylandConnection()
		return &launchError{CodeDuplicateFailed, err}
	}
	defer waylandChild.Close()
	defer func() {
		if failed {
			s.server.DestroyXWaylandConnection()
		}
	}()

	program, err := s.resolveProgram()
	if err != nil {
		return &launchError{CodeLaunchFailed, err}
	}

	command := exec.Command(program)
	displayFile, err := displayWrite.File()
	if err != nil {
		return &launchError{CodeLaunchFailed, err}
	}
	defer displayFile.Close()
	windowManagerFile, err := windowManagerChild.File()
	if err != nil {
		return &launchError{CodeLaunchFailed, err}
	}
	defer windowManagerFile.Close()
	waylandFile, err := waylandChild.File()
	if err != nil {
		return &launchError{CodeLaunchFailed, err}
	}
	defer waylandFile.Close()

	displayDescriptor := fd.ExtraFile(command, displayFile)
	windowManagerDescriptor := fd.ExtraFile(command, windowManagerFile)
	waylandDescriptor := fd.ExtraFile(command, waylandFile)

	command.Args = append([]string{program,
		"-displayfd", strconv.Itoa(displayDescriptor),
		"-rootless",
		"-wm", strconv.Itoa(windowManagerDescriptor),
	}, s.options.Xwayland.ExtraArguments...)
	command.Env = append(s.application.Environ(),
		"WAYLAND_SOCKET="+strconv.Itoa(waylandDescriptor),
		"EGL_PLATFORM=DRM",
	)
	command.Stderr = s.options.Stderr
	if command.Stderr == nil {
		command.Stderr = os.Stderr
	}

	// The display pipe is read on the runtime poller so that closing it
	// in Stop interrupts a pending read.
	if err := displayRead.SetNonblock(); err != nil {
		return &launchError{CodeLaunchFailed, err}
	}

	if err := command.Start(); err != nil {
		return &launchError{CodeLaunchFailed, fmt.Errorf("starting %s: %w", program, err)}
	}

	reader, err := displayRead.File()
	if err != nil {
		// Unreachable in practice: displayRead is valid until here.
		command.Process.Kill()
		command.Wait()
		return &launchError{CodeLaunchFailed, err}
	}
	failed = false

	started := &process{command: command, exited: make(chan struct{})}
	s.process = started
	s.displayReader = reader
	s.windowManagerSocket = windowManagerLocal

	s.logger.Info("Xwayland launched",
		"program", program,
		"pid", started.pid(),
		"arguments", command.Args[1:],
	)

	go s.readDisplay(started, reader)
	go s.wait(started)
	return nil
}

// resolveProgram finds the Xwayland executable: a path is used as is,
// otherwise the configured search paths are tried before PATH.
func (s *Supervisor) resolveProgram() (string, error) {
	program := s.options.Xwayland.Program
	if strings.Contains(program, "/") {
		return program, nil
	}
	for _, directory := range s.options.Xwayland.SearchPaths {
		candidate := filepath.Join(directory, program)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(program)
	if err != nil {
		return "", fmt.Errorf("finding %s: %w", program, err)
	}
	return path, nil
}

// readDisplay reads the display number Xwayland writes to the
// -displayfd pipe once it is ready to accept connections.
func (s *Supervisor) readDisplay(started *process, reader *os.File) {
	line, err := bufio.NewReader(reader).ReadString('\n')
	s.application.Loop.Post(func() { s.displayReady(started, line, err) })
}

func (s *Supervisor) wait(started *process) {
	started.waitErr = started.command.Wait()
	close(started.exited)
	s.application.Loop.Post(func() { s.processExited(started) })
}

func (p *process) terminate() error {
	return p.command.Process.Signal(syscall.SIGTERM)
}

func (s *Supervisor) displayReady(started *process, line string, err error) {
	if started.detached || started != s.process {
		return
	}
	s.closeDisplayReader()

	number := strings.TrimSpace(line)
	if number == "" {
		// The process exit that follows tears the session down.
		s.logger.Warn("Xwayland closed the display pipe without reporting a display", "error", err)
		return
	}
	display, parseErr := parseDisplay(number)
	if parseErr != nil {
		s.logger.Error("Xwayland reported an invalid display", "display", number, "error", parseErr)
		s.CriticalError.Emit(CodeLaunchFailed)
		s.Stop()
		return
	}
	s.display = display
	s.logger.Info("Xwayland ready", "display", s.display)
	s.continueStartup()
}

// parseDisplay turns the number Xwayland writes to -displayfd into a
// display name. Only plain decimal digits are accepted.
func parseDisplay(number string) (string, error) {
	value, err := strconv.ParseUint(number, 10, 32)
	if err != nil {
		return "", fmt.Errorf("parsing display number %q: %w", number, err)
	}
	return ":" + strconv.FormatUint(value, 10), nil
}

func (s *Supervisor) processExited(started *process) {
	if started.detached || started != s.process {
		return
	}
	var exitErr *exec.ExitError
	switch {
	case started.waitErr == nil:
		s.logger.Info("Xwayland exited", "pid", started.pid(), "exit_code", 0)
	case errors.As(started.waitErr, &exitErr):
		status, ok := exitErr.Sys().(syscall.WaitStatus)
		if ok && status.Signaled() {
			s.logger.Warn("Xwayland crashed, shutting down X11 components",
				"pid", started.pid(),
				"signal", status.Signal().String(),
			)
		} else {
			s.logger.Warn("Xwayland exited", "pid", started.pid(), "exit_code", exitErr.ExitCode())
		}
	default:
		s.logger.Warn("waiting for Xwayland", "pid", started.pid(), "error", started.waitErr)
	}
	s.Stop()
}
