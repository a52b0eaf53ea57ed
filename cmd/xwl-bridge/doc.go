// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// xwl-bridge runs a rootless Xwayland server against an existing
// Wayland compositor and bridges the clipboard and drag-and-drop
// between X11 clients and the native side.
//
// Subcommands:
//
//	xwl-bridge run [--config PATH]    supervise an Xwayland session
//	xwl-bridge status [--diagnose]    show the running session
//	xwl-bridge version                print version information
//
// Configuration comes from the file named by --config or XWL_CONFIG.
// Without either, the built-in defaults apply. When Xwayland cannot
// be brought up, run exits with the critical error code (1 for
// creation failures, 20 for descriptor duplication failures).
package main
