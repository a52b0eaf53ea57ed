// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package xwayland supervises the Xwayland helper process and the
// compositor's window-manager connection to it.
//
// [Supervisor.Start] launches Xwayland with three inherited
// descriptors: the write end of a pipe on which Xwayland reports its
// display number (-displayfd), one end of a socket pair that becomes
// the window-manager X11 connection (-wm), and the client end of a
// native compositor connection (WAYLAND_SOCKET). When the display
// number arrives, the supervisor connects over its end of the socket
// pair, claims WM_S0, constructs the selection bridge, exports DISPLAY
// into the compositor's startup environment, and emits Started.
//
// [Supervisor.Stop] tears down in a fixed order: stop dispatching X11
// events, close the selection bridge, close the X11 connection
// (announcing it in two phases on the compositor context), terminate
// the process with a bounded wait, and finally destroy the native
// connection.
//
// Launch failures are reported through CriticalError with code
// [CodeLaunchFailed] (1) or [CodeDuplicateFailed] (20). A running
// session is recorded in a CBOR state file read by "xwl-bridge status".
//
// All Supervisor methods must be called on the compositor's event loop.
package xwayland
