// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package x11 holds the compositor's connection to the legacy X server.
//
// [Conn] is the narrow request surface the bridge needs from an X11
// client library. [Dial] implements it on top of github.com/jezek/xgb
// over the socket the compositor shares with Xwayland's -wm descriptor;
// [FakeConn] implements it in memory for tests, with enough server
// behaviour (selection ownership, SelectionClear, XFIXES notifications,
// window properties) for selection logic to be exercised end to end.
//
// A [Connection] bundles a Conn with the default screen, the interned
// [Atoms] table, and the window-manager [OwnershipClaim]. Events read
// from the connection are offered to a [FilterChain]; the first
// [EventFilter] that consumes an event stops propagation.
//
// Everything except the readiness callback registered with
// SetReadyFunc runs on the compositor event loop.
package x11
