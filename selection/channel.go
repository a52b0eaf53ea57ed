// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package selection

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xfixes"
	"github.com/jezek/xgb/xproto"

	"github.com/bureau-foundation/xwl/lib/eventloop"
	"github.com/bureau-foundation/xwl/lib/fd"
	"github.com/bureau-foundation/xwl/lib/lifecycle"
	"github.com/bureau-foundation/xwl/native"
	"github.com/bureau-foundation/xwl/x11"
)

// maxTransferSize bounds the native data copied into a single X
// property. Larger transfers are refused; INCR is not implemented.
const maxTransferSize = 256 << 10

const ownerChangeMask = xfixes.SelectionEventMaskSetSelectionOwner |
	xfixes.SelectionEventMaskSelectionWindowDestroy |
	xfixes.SelectionEventMaskSelectionClientClose

// channelParams carries what every channel borrows from the bridge.
type channelParams struct {
	connection *x11.Connection
	device     native.DataDevice
	loop       *eventloop.Loop
	logger     *slog.Logger
}

// channel is the state shared by Clipboard and DragAndDrop: a proxy
// window that owns the X selection for native clients, the current
// owner side, and the queue of conversions reading from X owners.
type channel struct {
	name       string
	connection *x11.Connection
	conn       x11.Conn
	atoms      *x11.Atoms
	loop       *eventloop.Loop
	logger     *slog.Logger

	selection xproto.Atom
	window    xproto.Window

	owner Side

	// OwnerChanged fires once per change of the owning side.
	OwnerChanged lifecycle.Signal[Side]

	// ownsX is true while the proxy window owns the X selection.
	ownsX     bool
	claimTime xproto.Timestamp

	nativeSource native.Source
	legacySource *legacySource

	// generation changes whenever the owner changes. Work started for
	// an older generation is abandoned when it completes.
	generation uint64

	// conversions are served one at a time through TransferProperty;
	// only the head has been sent to the server.
	conversions []*conversion
	converting  bool
	transfers   int

	// offerLegacy publishes a legacy-backed source on the native side.
	offerLegacy func(source *legacySource)
	// withdrawLegacy retracts the last published legacy source.
	withdrawLegacy func()

	closed bool
}

type conversion struct {
	target xproto.Atom

	// destination receives the converted data. Nil for the TARGETS
	// conversion made when an X client takes ownership.
	destination *os.File
	generation  uint64
}

func (c *conversion) abandon() {
	if c.destination != nil {
		c.destination.Close()
	}
}

func newChannel(params channelParams, name string, selection xproto.Atom) (*channel, error) {
	conn := params.connection.Conn
	window, err := conn.CreateWindow(params.connection.Root(), xproto.EventMaskPropertyChange)
	if err != nil {
		return nil, fmt.Errorf("creating %s proxy window: %w", name, err)
	}
	if err := conn.SelectSelectionInput(window, selection, ownerChangeMask); err != nil {
		conn.DestroyWindow(window)
		return nil, fmt.Errorf("selecting %s owner notifications: %w", name, err)
	}
	return &channel{
		name:           name,
		connection:     params.connection,
		conn:           conn,
		atoms:          params.connection.Atoms,
		loop:           params.loop,
		logger:         params.logger.With("selection", name),
		selection:      selection,
		window:         window,
		offerLegacy:    func(*legacySource) {},
		withdrawLegacy: func() {},
	}, nil
}

// Owner returns the side that currently owns the selection.
func (c *channel) Owner() Side { return c.owner }

// TransferInProgress reports whether data is being moved in either
// direction.
func (c *channel) TransferInProgress() bool {
	return c.transfers > 0 || len(c.conversions) > 0
}

// Window returns the proxy window that owns the X selection on behalf
// of native clients.
func (c *channel) Window() xproto.Window { return c.window }

func (c *channel) setOwner(side Side) {
	if c.owner == side {
		return
	}
	c.logger.Debug("selection owner changed", "from", c.owner.String(), "to", side.String())
	c.owner = side
	c.OwnerChanged.Emit(side)
}

// filterEvent consumes the selection events addressed to this channel.
func (c *channel) filterEvent(event xgb.Event) bool {
	if c.closed {
		return false
	}
	switch e := event.(type) {
	case xfixes.SelectionNotifyEvent:
		if e.Selection != c.selection || e.Window != c.window {
			return false
		}
		c.ownerNotified(e)
		return true
	case xproto.SelectionRequestEvent:
		if e.Selection != c.selection || e.Owner != c.window {
			return false
		}
		c.conversionRequested(e)
		return true
	case xproto.SelectionNotifyEvent:
		if e.Selection != c.selection || e.Requestor != c.window {
			return false
		}
		c.conversionFinished(e)
		return true
	case xproto.SelectionClearEvent:
		if e.Selection != c.selection || e.Owner != c.window {
			return false
		}
		// The XFIXES notification that follows carries the new owner.
		c.ownsX = false
		return true
	}
	return false
}

func (c *channel) ownerNotified(e xfixes.SelectionNotifyEvent) {
	if e.Owner == c.window {
		c.claimTime = e.SelectionTimestamp
		return
	}
	if c.ownsX && c.stillOwned() {
		// Queued before the proxy's own claim; the proxy owns it now.
		c.logger.Debug("ignoring stale owner notification",
			"owner", fmt.Sprintf("0x%x", e.Owner),
			"timestamp", e.SelectionTimestamp,
		)
		return
	}

	switch e.Owner {
	case xproto.WindowNone:
		c.ownsX = false
		if c.owner == SideLegacy {
			c.generation++
			if c.legacySource != nil {
				c.legacySource = nil
				c.withdrawLegacy()
			}
			c.setOwner(SideNone)
		}
		return
	}

	c.logger.Debug("X client took the selection", "owner", fmt.Sprintf("0x%x", e.Owner))
	c.ownsX = false
	c.nativeSource = nil
	c.legacySource = nil
	c.generation++
	c.setOwner(SideLegacy)
	c.enqueue(&conversion{target: c.atoms.Targets, generation: c.generation})
}

// stillOwned asks the server whether the proxy window owns the
// selection.
func (c *channel) stillOwned() bool {
	owner, err := c.conn.SelectionOwner(c.selection)
	if err != nil {
		c.logger.Warn("querying X selection owner", "error", err)
		return false
	}
	return owner == c.window
}

// claimForNative makes the proxy window own the X selection on behalf
// of source.
func (c *channel) claimForNative(source native.Source) {
	if c.closed {
		return
	}
	c.generation++
	c.legacySource = nil
	c.nativeSource = source
	if err := c.conn.SetSelectionOwner(c.window, c.selection, xproto.TimeCurrentTime); err != nil {
		c.logger.Warn("claiming X selection for native client", "error", err)
		return
	}
	c.ownsX = true
	c.setOwner(SideNative)
}

// releaseNative gives up a native claim. No-op unless the native side
// owns the selection.
func (c *channel) releaseNative() {
	if c.owner != SideNative {
		return
	}
	c.generation++
	c.nativeSource = nil
	if c.ownsX {
		if err := c.conn.SetSelectionOwner(xproto.WindowNone, c.selection, xproto.TimeCurrentTime); err != nil {
			c.logger.Warn("releasing X selection", "error", err)
		}
		c.ownsX = false
	}
	c.setOwner(SideNone)
}

func (c *channel) enqueue(item *conversion) {
	c.conversions = append(c.conversions, item)
	c.startConversion()
}

func (c *channel) startConversion() {
	for !c.converting && len(c.conversions) > 0 {
		head := c.conversions[0]
		if head.generation != c.generation {
			c.conversions = c.conversions[1:]
			head.abandon()
			continue
		}
		err := c.conn.ConvertSelection(c.window, c.selection, head.target, c.atoms.TransferProperty, xproto.TimeCurrentTime)
		if err != nil {
			c.logger.Warn("converting X selection", "error", err)
			c.conversions = c.conversions[1:]
			head.abandon()
			continue
		}
		c.converting = true
	}
}

func (c *channel) conversionFinished(e xproto.SelectionNotifyEvent) {
	if !c.converting || len(c.conversions) == 0 {
		c.logger.Debug("ignoring unsolicited SelectionNotify", "target", e.Target)
		return
	}
	head := c.conversions[0]
	c.conversions = c.conversions[1:]
	c.converting = false
	defer c.startConversion()

	var property *x11.Property
	if e.Property != xproto.AtomNone {
		value, err := c.conn.GetProperty(c.window, e.Property, true)
		if err != nil {
			c.logger.Warn("reading converted selection", "error", err)
		} else {
			property = value
		}
	}

	if head.destination == nil {
		c.targetsReceived(head, property)
		return
	}
	c.dataReceived(head, property)
}

func (c *channel) targetsReceived(head *conversion, property *x11.Property) {
	if head.generation != c.generation {
		return
	}
	var mimeTypes []string
	if property != nil && property.Format == 32 {
		mimeTypes = c.mimeTypes(property.Value)
	}
	if len(mimeTypes) == 0 {
		c.logger.Warn("X selection owner offered no usable targets")
		c.withdrawLegacy()
		return
	}
	source := &legacySource{channel: c, generation: c.generation, mimeTypes: mimeTypes}
	c.legacySource = source
	c.offerLegacy(source)
}

// mimeTypes decodes a TARGETS reply into the mime types it offers.
func (c *channel) mimeTypes(value []byte) []string {
	var mimeTypes []string
	for offset := 0; offset+4 <= len(value); offset += 4 {
		target := xproto.Atom(xgb.Get32(value[offset:]))
		mime, ok := c.atoms.MimeType(c.conn, target)
		if ok && !slices.Contains(mimeTypes, mime) {
			mimeTypes = append(mimeTypes, mime)
		}
	}
	return mimeTypes
}

func (c *channel) dataReceived(head *conversion, property *x11.Property) {
	destination := head.destination
	switch {
	case property == nil:
		destination.Close()
		return
	case property.Type == c.atoms.Incr:
		c.logger.Warn("X selection owner requested an incremental transfer, which is not supported")
		destination.Close()
		return
	case property.BytesAfter > 0:
		c.logger.Warn("X selection data truncated", "remaining_bytes", property.BytesAfter)
	}

	c.transfers++
	data := property.Value
	go func() {
		_, err := destination.Write(data)
		destination.Close()
		c.loop.Post(func() {
			c.transfers--
			if err != nil {
				c.logger.Debug("native reader went away during transfer", "error", err)
			}
		})
	}()
}

// requestData queues a conversion on behalf of a native reader of
// source. Loop-only.
func (c *channel) requestData(source *legacySource, mime string, destination *os.File) {
	if c.closed || source.generation != c.generation {
		destination.Close()
		return
	}
	target, err := c.atoms.TargetForMime(c.conn, mime)
	if err != nil {
		c.logger.Warn("mapping mime type to X target", "mime", mime, "error", err)
		destination.Close()
		return
	}
	c.enqueue(&conversion{target: target, destination: destination, generation: source.generation})
}

func (c *channel) conversionRequested(e xproto.SelectionRequestEvent) {
	property := e.Property
	if property == xproto.AtomNone {
		// Pre-ICCCM requestors use the target as the property.
		property = e.Target
	}
	reply := xproto.SelectionNotifyEvent{
		Time:      e.Time,
		Requestor: e.Requestor,
		Selection: e.Selection,
		Target:    e.Target,
		Property:  property,
	}

	source := c.nativeSource
	if c.owner != SideNative || source == nil {
		c.refuse(reply)
		return
	}

	switch e.Target {
	case c.atoms.Targets:
		err := c.conn.ChangeProperty(e.Requestor, property, xproto.AtomAtom, 32, c.encodeTargets(source))
		c.reply(reply, err)
	case c.atoms.Timestamp:
		value := make([]byte, 4)
		xgb.Put32(value, uint32(c.claimTime))
		c.reply(reply, c.conn.ChangeProperty(e.Requestor, property, xproto.AtomInteger, 32, value))
	default:
		mime, ok := c.offeredMime(source, e.Target)
		if !ok {
			c.refuse(reply)
			return
		}
		c.streamNative(source, mime, reply)
	}
}

func (c *channel) encodeTargets(source native.Source) []byte {
	targets := []xproto.Atom{c.atoms.Targets, c.atoms.Timestamp}
	for _, mime := range source.MimeTypes() {
		target, err := c.atoms.TargetForMime(c.conn, mime)
		if err != nil {
			c.logger.Debug("mapping mime type to X target", "mime", mime, "error", err)
			continue
		}
		if !slices.Contains(targets, target) {
			targets = append(targets, target)
		}
	}
	value := make([]byte, 4*len(targets))
	for i, target := range targets {
		xgb.Put32(value[4*i:], uint32(target))
	}
	return value
}

// offeredMime picks the mime type source should send for an X target.
func (c *channel) offeredMime(source native.Source, target xproto.Atom) (string, bool) {
	mime, ok := c.atoms.MimeType(c.conn, target)
	if !ok {
		return "", false
	}
	offered := source.MimeTypes()
	if slices.Contains(offered, mime) {
		return mime, true
	}
	if mime == x11.MimeTextPlain && slices.Contains(offered, x11.MimeTextUTF8) {
		return x11.MimeTextUTF8, true
	}
	return "", false
}

// streamNative reads source through a pipe off the loop and answers
// the request once the writer closes its end.
func (c *channel) streamNative(source native.Source, mime string, reply xproto.SelectionNotifyEvent) {
	readEnd, writeEnd, err := fd.Pipe("selection-" + c.name)
	if err != nil {
		c.logger.Warn("creating transfer pipe", "error", err)
		c.refuse(reply)
		return
	}
	reader, err := readEnd.File()
	if err != nil {
		readEnd.Close()
		writeEnd.Close()
		c.refuse(reply)
		return
	}
	writer, err := writeEnd.File()
	if err != nil {
		reader.Close()
		writeEnd.Close()
		c.refuse(reply)
		return
	}

	c.transfers++
	source.Send(mime, writer)
	go func() {
		data, err := io.ReadAll(io.LimitReader(reader, maxTransferSize+1))
		reader.Close()
		c.loop.Post(func() { c.nativeDataRead(reply, data, err) })
	}()
}

func (c *channel) nativeDataRead(reply xproto.SelectionNotifyEvent, data []byte, err error) {
	c.transfers--
	if c.closed {
		return
	}
	switch {
	case err != nil:
		c.logger.Warn("reading native selection data", "error", err)
		c.refuse(reply)
	case len(data) > maxTransferSize:
		c.logger.Warn("native selection data too large for a single property", "limit_bytes", maxTransferSize)
		c.refuse(reply)
	default:
		c.reply(reply, c.conn.ChangeProperty(reply.Requestor, reply.Property, reply.Target, 8, data))
	}
}

func (c *channel) reply(reply xproto.SelectionNotifyEvent, err error) {
	if err != nil {
		c.logger.Warn("storing selection data on requestor", "error", err)
		reply.Property = xproto.AtomNone
	}
	c.sendNotify(reply)
}

func (c *channel) refuse(reply xproto.SelectionNotifyEvent) {
	reply.Property = xproto.AtomNone
	c.sendNotify(reply)
}

func (c *channel) sendNotify(reply xproto.SelectionNotifyEvent) {
	if err := c.conn.SendEvent(reply.Requestor, xproto.EventMaskNoEvent, reply.Bytes()); err != nil {
		c.logger.Warn("sending SelectionNotify", "error", err)
		return
	}
	if err := c.conn.Flush(); err != nil {
		c.logger.Debug("flushing X connection", "error", err)
	}
}

// close disowns the X selection and destroys the proxy window. Pending
// conversions are abandoned. The channel must be closed before the
// connection it borrows.
func (c *channel) close() {
	if c.closed {
		return
	}
	c.closed = true
	for _, item := range c.conversions {
		item.abandon()
	}
	c.conversions = nil
	c.converting = false
	c.nativeSource = nil
	c.legacySource = nil
	c.owner = SideNone

	if c.ownsX {
		if err := c.conn.SetSelectionOwner(xproto.WindowNone, c.selection, xproto.TimeCurrentTime); err != nil {
			c.logger.Debug("disowning X selection", "error", err)
		}
		c.ownsX = false
	}
	if err := c.conn.SelectSelectionInput(c.window, c.selection, 0); err != nil {
		c.logger.Debug("deselecting owner notifications", "error", err)
	}
	if err := c.conn.DestroyWindow(c.window); err != nil {
		c.logger.Debug("destroying proxy window", "error", err)
	}
	if err := c.conn.Flush(); err != nil {
		c.logger.Debug("flushing X connection", "error", err)
	}
}

// legacySource is the native-side stand-in for an X selection owner.
// Its methods may be called from any goroutine.
type legacySource struct {
	channel    *channel
	generation uint64
	mimeTypes  []string
}

func (s *legacySource) MimeTypes() []string { return slices.Clone(s.mimeTypes) }

// Send converts the X selection on the loop and writes the result to
// destination.
func (s *legacySource) Send(mime string, destination *os.File) {
	s.channel.loop.Post(func() { s.channel.requestData(s, mime, destination) })
}
