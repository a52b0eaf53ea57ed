// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"github.com/jezek/xgb"

	"github.com/bureau-foundation/xwl/native"
)

// Clipboard bridges the X CLIPBOARD selection and the native
// clipboard selection.
type Clipboard struct {
	*channel
	disconnect func()
}

func newClipboard(params channelParams, server native.Server) (*Clipboard, error) {
	base, err := newChannel(params, "clipboard", params.connection.Atoms.Clipboard)
	if err != nil {
		return nil, err
	}
	clipboard := &Clipboard{channel: base}
	base.offerLegacy = func(source *legacySource) { params.device.SetSelection(source) }
	base.withdrawLegacy = params.device.ClearSelection

	clipboard.disconnect = server.OnSelectionChanged(clipboard.nativeSelectionChanged)
	if current := server.Selection(); current != nil {
		clipboard.nativeSelectionChanged(current)
	}
	return clipboard, nil
}

func (c *Clipboard) nativeSelectionChanged(source native.Source) {
	if own, ok := source.(*legacySource); ok && own.channel == c.channel {
		return
	}
	if source == nil {
		c.releaseNative()
		return
	}
	c.claimForNative(source)
}

// FilterEvent consumes CLIPBOARD events addressed to the proxy window.
func (c *Clipboard) FilterEvent(event xgb.Event) bool { return c.filterEvent(event) }

// Close stops following the native selection and releases the X
// selection.
func (c *Clipboard) Close() {
	if c.disconnect != nil {
		c.disconnect()
		c.disconnect = nil
	}
	c.close()
}
