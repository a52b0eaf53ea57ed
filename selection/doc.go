// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package selection bridges X11 selections and the native data device.
//
// A [Bridge] owns one native data device and two channels: a
// [Clipboard] bound to the CLIPBOARD selection and a [DragAndDrop]
// bound to XdndSelection. Each channel tracks which side currently
// owns its selection. Ownership is exclusive: whichever side claims
// last wins and the other side's claim is revoked.
//
// When a native client owns the selection, the channel's proxy window
// owns the X selection and answers conversion requests by streaming the
// native source. When an X client owns it, the channel offers a
// legacy-backed source on the native side and converts the X selection
// whenever a native client asks for data.
//
// Everything in this package is confined to the compositor's event
// loop. Data is moved through pipes on short-lived goroutines that post
// their results back to the loop.
package selection
