// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package native

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/xwl/lib/fd"
)

// SocketPath resolves the compositor socket the way Wayland clients
// do: an absolute WAYLAND_DISPLAY is used as is, a relative one is
// taken relative to XDG_RUNTIME_DIR, and an empty one means wayland-0.
func SocketPath(waylandDisplay, runtimeDirectory string) (string, error) {
	if waylandDisplay == "" {
		waylandDisplay = "wayland-0"
	}
	if filepath.IsAbs(waylandDisplay) {
		return waylandDisplay, nil
	}
	if runtimeDirectory == "" {
		return "", fmt.Errorf("XDG_RUNTIME_DIR not set and WAYLAND_DISPLAY %q is relative", waylandDisplay)
	}
	return filepath.Join(runtimeDirectory, waylandDisplay), nil
}

// DialSocket connects to a Wayland compositor socket and returns the
// connection as an owned descriptor suitable for WAYLAND_SOCKET.
func DialSocket(path string) (*fd.Owned, error) {
	connection, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	defer connection.Close()

	// The duplicate outlives both the net.Conn and the *os.File.
	file, err := connection.File()
	if err != nil {
		return nil, fmt.Errorf("duplicating %s connection: %w", path, err)
	}
	duplicate, err := fd.New(int(file.Fd()), "wayland-client").Dup()
	file.Close()
	if err != nil {
		return nil, err
	}
	return duplicate, nil
}

// EnvironmentConnectionFactory returns a factory that dials the
// compositor named by WAYLAND_DISPLAY and XDG_RUNTIME_DIR.
func EnvironmentConnectionFactory() ConnectionFactory {
	return func() (*fd.Owned, error) {
		path, err := SocketPath(os.Getenv("WAYLAND_DISPLAY"), os.Getenv("XDG_RUNTIME_DIR"))
		if err != nil {
			return nil, err
		}
		return DialSocket(path)
	}
}
