// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package x11

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xfixes"
	"github.com/jezek/xgb/xproto"
)

// ErrFakeClosed is returned by FakeConn requests after Close or Fail.
var ErrFakeClosed = errors.New("fake X11 connection closed")

// FakeConn is an in-memory Conn that behaves like an X server with two
// clients: the compositor (the FakeConn's user) and a "foreign" client
// driven by the test through the Foreign* methods.
//
// It implements selection ownership with SelectionClear delivery,
// XFIXES owner-change notifications, ConvertSelection against either
// side, and window properties. Requests are recorded for assertions.
//
// FakeConn is safe for concurrent use.
type FakeConn struct {
	mu sync.Mutex

	screen     Screen
	atoms      map[string]xproto.Atom
	atomNames  map[xproto.Atom]string
	nextAtom   xproto.Atom
	nextWindow xproto.Window

	// ownWindows holds windows created through CreateWindow.
	ownWindows map[xproto.Window]bool
	owners     map[xproto.Atom]xproto.Window
	// subscriptions maps a selection to the windows that selected
	// XFIXES input for it.
	subscriptions map[xproto.Atom]map[xproto.Window]uint32
	properties    map[propertyKey]Property
	foreignData   map[xproto.Atom]map[xproto.Atom]Property

	events []xgb.Event
	ready  func()
	failed error
	closed bool

	sent        []SentEvent
	sendHook    func(SentEvent)
	conversions []Conversion
	focusResets int
	syncs       int
}

type propertyKey struct {
	window   xproto.Window
	property xproto.Atom
}

// SentEvent records a SendEvent request.
type SentEvent struct {
	Destination xproto.Window
	Mask        uint32
	Event       []byte
}

// Conversion records a ConvertSelection request.
type Conversion struct {
	Requestor xproto.Window
	Selection xproto.Atom
	Target    xproto.Atom
	Property  xproto.Atom
}

// FakeRoot is the root window of a FakeConn's screen.
const FakeRoot xproto.Window = 0x2a1

// NewFakeConn returns a healthy fake connection with predefined atoms
// interned.
func NewFakeConn() *FakeConn {
	fake := &FakeConn{
		screen:        Screen{Number: 0, Root: FakeRoot, RootVisual: 0x21},
		atoms:         make(map[string]xproto.Atom),
		atomNames:     make(map[xproto.Atom]string),
		nextAtom:      100,
		nextWindow:    0x400001,
		ownWindows:    make(map[xproto.Window]bool),
		owners:        make(map[xproto.Atom]xproto.Window),
		subscriptions: make(map[xproto.Atom]map[xproto.Window]uint32),
		properties:    make(map[propertyKey]Property),
		foreignData:   make(map[xproto.Atom]map[xproto.Atom]Property),
	}
	for name, atom := range map[string]xproto.Atom{
		"PRIMARY":   xproto.AtomPrimary,
		"SECONDARY": xproto.AtomSecondary,
		"ATOM":      xproto.AtomAtom,
		"INTEGER":   xproto.AtomInteger,
		"STRING":    xproto.AtomString,
		"WINDOW":    xproto.AtomWindow,
	} {
		fake.atoms[name] = atom
		fake.atomNames[atom] = name
	}
	return fake
}

func (f *FakeConn) DefaultScreen() Screen { return f.screen }

func (f *FakeConn) InternAtoms(names []string) ([]xproto.Atom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usableLocked(); err != nil {
		return nil, err
	}
	result := make([]xproto.Atom, len(names))
	for i, name := range names {
		result[i] = f.internLocked(name)
	}
	return result, nil
}

func (f *FakeConn) internLocked(name string) xproto.Atom {
	if atom, ok := f.atoms[name]; ok {
		return atom
	}
	atom := f.nextAtom
	f.nextAtom++
	f.atoms[name] = atom
	f.atomNames[atom] = name
	return atom
}

// Atom interns name and returns its atom. Test convenience.
func (f *FakeConn) Atom(name string) xproto.Atom {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.internLocked(name)
}

func (f *FakeConn) AtomName(atom xproto.Atom) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usableLocked(); err != nil {
		return "", err
	}
	name, ok := f.atomNames[atom]
	if !ok {
		return "", fmt.Errorf("BadAtom %d", atom)
	}
	return name, nil
}

func (f *FakeConn) PollForEvent() (xgb.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil, nil
	}
	event := f.events[0]
	f.events = f.events[1:]
	return event, nil
}

func (f *FakeConn) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

func (f *FakeConn) SetReadyFunc(ready func()) {
	f.mu.Lock()
	f.ready = ready
	f.mu.Unlock()
}

func (f *FakeConn) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usableLocked()
}

func (f *FakeConn) CreateWindow(parent xproto.Window, eventMask uint32) (xproto.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usableLocked(); err != nil {
		return xproto.WindowNone, err
	}
	window := f.nextWindow
	f.nextWindow++
	f.ownWindows[window] = true
	return window, nil
}

func (f *FakeConn) DestroyWindow(window xproto.Window) error {
	var notify func()
	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	delete(f.ownWindows, window)
	for selection, owner := range f.owners {
		if owner == window {
			f.owners[selection] = xproto.WindowNone
			f.queueOwnerNotifyLocked(selection, xproto.WindowNone, xproto.TimeCurrentTime, xfixes.SelectionEventSelectionWindowDestroy)
		}
	}
	for key := range f.properties {
		if key.window == window {
			delete(f.properties, key)
		}
	}
	for _, subscribers := range f.subscriptions {
		delete(subscribers, window)
	}
	notify = f.ready
	f.mu.Unlock()
	signal(notify)
	return nil
}

func (f *FakeConn) SetSelectionOwner(owner xproto.Window, selection xproto.Atom, time xproto.Timestamp) error {
	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.setOwnerLocked(owner, selection, time, false)
	notify := f.ready
	f.mu.Unlock()
	signal(notify)
	return nil
}

// setOwnerLocked applies an ownership change. SelectionClear is only
// delivered to the compositor, and only when ownership moves from the
// compositor to the foreign client.
func (f *FakeConn) setOwnerLocked(owner xproto.Window, selection xproto.Atom, time xproto.Timestamp, foreign bool) {
	previous := f.owners[selection]
	f.owners[selection] = owner
	if foreign && previous != xproto.WindowNone && f.ownWindows[previous] {
		f.events = append(f.events, xproto.SelectionClearEvent{
			Time:      time,
			Owner:     previous,
			Selection: selection,
		})
	}
	f.queueOwnerNotifyLocked(selection, owner, time, xfixes.SelectionEventSetSelectionOwner)
}

func (f *FakeConn) queueOwnerNotifyLocked(selection xproto.Atom, owner xproto.Window, time xproto.Timestamp, subtype byte) {
	for window, mask := range f.subscriptions[selection] {
		if mask&subtypeMask(subtype) == 0 {
			continue
		}
		f.events = append(f.events, xfixes.SelectionNotifyEvent{
			Subtype:            subtype,
			Window:             window,
			Owner:              owner,
			Selection:          selection,
			Timestamp:          time,
			SelectionTimestamp: time,
		})
	}
}

func subtypeMask(subtype byte) uint32 {
	switch subtype {
	case xfixes.SelectionEventSetSelectionOwner:
		return xfixes.SelectionEventMaskSetSelectionOwner
	case xfixes.SelectionEventSelectionWindowDestroy:
		return xfixes.SelectionEventMaskSelectionWindowDestroy
	default:
		return xfixes.SelectionEventMaskSelectionClientClose
	}
}

func (f *FakeConn) SelectionOwner(selection xproto.Atom) (xproto.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usableLocked(); err != nil {
		return xproto.WindowNone, err
	}
	return f.owners[selection], nil
}

func (f *FakeConn) SelectSelectionInput(window xproto.Window, selection xproto.Atom, mask uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usableLocked(); err != nil {
		return err
	}
	if mask == 0 {
		delete(f.subscriptions[selection], window)
		return nil
	}
	if f.subscriptions[selection] == nil {
		f.subscriptions[selection] = make(map[xproto.Window]uint32)
	}
	f.subscriptions[selection][window] = mask
	return nil
}

// ConvertSelection delivers a SelectionRequest to the compositor when
// it owns the selection. When the foreign client owns it, the data
// registered with ForeignSelectionData is stored on the requestor and a
// SelectionNotify is queued (with property None if there is no data).
func (f *FakeConn) ConvertSelection(requestor xproto.Window, selection, target, property xproto.Atom, time xproto.Timestamp) error {
	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.conversions = append(f.conversions, Conversion{
		Requestor: requestor,
		Selection: selection,
		Target:    target,
		Property:  property,
	})

	owner := f.owners[selection]
	switch {
	case owner != xproto.WindowNone && f.ownWindows[owner]:
		f.events = append(f.events, xproto.SelectionRequestEvent{
			Time:      time,
			Owner:     owner,
			Requestor: requestor,
			Selection: selection,
			Target:    target,
			Property:  property,
		})
	default:
		notify := xproto.SelectionNotifyEvent{
			Time:      time,
			Requestor: requestor,
			Selection: selection,
			Target:    target,
			Property:  xproto.AtomNone,
		}
		if data, ok := f.foreignData[selection][target]; ok && owner != xproto.WindowNone {
			f.properties[propertyKey{requestor, property}] = data
			notify.Property = property
		}
		f.events = append(f.events, notify)
	}
	ready := f.ready
	f.mu.Unlock()
	signal(ready)
	return nil
}

func (f *FakeConn) GetProperty(window xproto.Window, property xproto.Atom, remove bool) (*Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usableLocked(); err != nil {
		return nil, err
	}
	key := propertyKey{window, property}
	value, ok := f.properties[key]
	if !ok {
		return &Property{Type: xproto.AtomNone}, nil
	}
	if remove {
		delete(f.properties, key)
	}
	copied := value
	copied.Value = append([]byte(nil), value.Value...)
	return &copied, nil
}

func (f *FakeConn) ChangeProperty(window xproto.Window, property, kind xproto.Atom, format byte, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usableLocked(); err != nil {
		return err
	}
	f.properties[propertyKey{window, property}] = Property{
		Type:   kind,
		Format: format,
		Value:  append([]byte(nil), data...),
	}
	return nil
}

func (f *FakeConn) SendEvent(destination xproto.Window, mask uint32, event []byte) error {
	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	sent := SentEvent{
		Destination: destination,
		Mask:        mask,
		Event:       append([]byte(nil), event...),
	}
	f.sent = append(f.sent, sent)
	hook := f.sendHook
	f.mu.Unlock()

	if hook != nil {
		hook(sent)
	}
	return nil
}

// SetSendHook registers a function called with every SendEvent
// request, outside the fake's lock.
func (f *FakeConn) SetSendHook(hook func(SentEvent)) {
	f.mu.Lock()
	f.sendHook = hook
	f.mu.Unlock()
}

func (f *FakeConn) SetInputFocusPointerRoot() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usableLocked(); err != nil {
		return err
	}
	f.focusResets++
	return nil
}

func (f *FakeConn) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usableLocked(); err != nil {
		return err
	}
	f.syncs++
	return nil
}

func (f *FakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeConn) usableLocked() error {
	if f.closed {
		return ErrFakeClosed
	}
	return f.failed
}

func signal(ready func()) {
	if ready != nil {
		ready()
	}
}

// Push queues an event and signals readiness.
func (f *FakeConn) Push(event xgb.Event) {
	f.mu.Lock()
	f.events = append(f.events, event)
	ready := f.ready
	f.mu.Unlock()
	signal(ready)
}

// Fail marks the connection broken, as if the server had gone away,
// and signals readiness.
func (f *FakeConn) Fail(err error) {
	f.mu.Lock()
	f.failed = err
	ready := f.ready
	f.mu.Unlock()
	signal(ready)
}

// ForeignClaim makes window (owned by the foreign client) the owner of
// selection. Pass xproto.WindowNone to clear the selection.
func (f *FakeConn) ForeignClaim(selection xproto.Atom, window xproto.Window, time xproto.Timestamp) {
	f.mu.Lock()
	f.setOwnerLocked(window, selection, time, true)
	ready := f.ready
	f.mu.Unlock()
	signal(ready)
}

// ForeignSelectionData registers the data the foreign owner of
// selection returns for target.
func (f *FakeConn) ForeignSelectionData(selection, target, kind xproto.Atom, format byte, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.foreignData[selection] == nil {
		f.foreignData[selection] = make(map[xproto.Atom]Property)
	}
	f.foreignData[selection][target] = Property{Type: kind, Format: format, Value: data}
}

// ForeignRequest queues a SelectionRequest from the foreign client,
// asking the current (compositor) owner of selection to convert target
// onto property of requestor.
func (f *FakeConn) ForeignRequest(requestor xproto.Window, selection, target, property xproto.Atom, time xproto.Timestamp) {
	f.mu.Lock()
	f.events = append(f.events, xproto.SelectionRequestEvent{
		Time:      time,
		Owner:     f.owners[selection],
		Requestor: requestor,
		Selection: selection,
		Target:    target,
		Property:  property,
	})
	ready := f.ready
	f.mu.Unlock()
	signal(ready)
}

// Owner returns the current owner of selection.
func (f *FakeConn) Owner(selection xproto.Atom) xproto.Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[selection]
}

// OwnsWindow reports whether window was created by the compositor and
// not yet destroyed.
func (f *FakeConn) OwnsWindow(window xproto.Window) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ownWindows[window]
}

// PropertyValue returns a stored property without deleting it.
func (f *FakeConn) PropertyValue(window xproto.Window, property xproto.Atom) (Property, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.properties[propertyKey{window, property}]
	return value, ok
}

// SentEvents returns every SendEvent request so far.
func (f *FakeConn) SentEvents() []SentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentEvent(nil), f.sent...)
}

// Conversions returns every ConvertSelection request so far.
func (f *FakeConn) Conversions() []Conversion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Conversion(nil), f.conversions...)
}

// FocusResets returns how many times focus was handed to PointerRoot.
func (f *FakeConn) FocusResets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focusResets
}

// Syncs returns how many round trips were made.
func (f *FakeConn) Syncs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs
}

// Closed reports whether Close was called.
func (f *FakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Pending returns the number of queued events.
func (f *FakeConn) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
