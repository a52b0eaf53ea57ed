// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package x11

import (
	"fmt"
	"strings"

	"github.com/jezek/xgb/xproto"
)

// Atoms is the table of atoms the compositor interns once per
// connection.
type Atoms struct {
	WMS0    xproto.Atom
	Manager xproto.Atom

	Clipboard     xproto.Atom
	XdndSelection xproto.Atom

	Targets    xproto.Atom
	Timestamp  xproto.Atom
	Incr       xproto.Atom
	UTF8String xproto.Atom
	Text       xproto.Atom
	String     xproto.Atom

	XdndAware      xproto.Atom
	XdndEnter      xproto.Atom
	XdndPosition   xproto.Atom
	XdndStatus     xproto.Atom
	XdndLeave      xproto.Atom
	XdndDrop       xproto.Atom
	XdndFinished   xproto.Atom
	XdndTypeList   xproto.Atom
	XdndActionCopy xproto.Atom

	// TransferProperty is the property on proxy windows that receives
	// converted selection data.
	TransferProperty xproto.Atom
}

// atomNames lists every interned name with the field that receives it.
func (a *Atoms) atomNames() []struct {
	name   string
	target *xproto.Atom
} {
	return []struct {
		name   string
		target *xproto.Atom
	}{
		{"WM_S0", &a.WMS0},
		{"MANAGER", &a.Manager},
		{"CLIPBOARD", &a.Clipboard},
		{"XdndSelection", &a.XdndSelection},
		{"TARGETS", &a.Targets},
		{"TIMESTAMP", &a.Timestamp},
		{"INCR", &a.Incr},
		{"UTF8_STRING", &a.UTF8String},
		{"TEXT", &a.Text},
		{"STRING", &a.String},
		{"XdndAware", &a.XdndAware},
		{"XdndEnter", &a.XdndEnter},
		{"XdndPosition", &a.XdndPosition},
		{"XdndStatus", &a.XdndStatus},
		{"XdndLeave", &a.XdndLeave},
		{"XdndDrop", &a.XdndDrop},
		{"XdndFinished", &a.XdndFinished},
		{"XdndTypeList", &a.XdndTypeList},
		{"XdndActionCopy", &a.XdndActionCopy},
		{"_XWL_SELECTION", &a.TransferProperty},
	}
}

// InternAtoms interns the whole table in one batch.
func InternAtoms(conn Conn) (*Atoms, error) {
	atoms := &Atoms{}
	entries := atoms.atomNames()
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.name
	}
	values, err := conn.InternAtoms(names)
	if err != nil {
		return nil, err
	}
	if len(values) != len(entries) {
		return nil, fmt.Errorf("interned %d atoms, want %d", len(values), len(entries))
	}
	for i, entry := range entries {
		*entry.target = values[i]
	}
	return atoms, nil
}

// Mime types for the text targets every X11 toolkit understands.
const (
	MimeTextUTF8  = "text/plain;charset=utf-8"
	MimeTextPlain = "text/plain"
)

// MimeType maps a selection target atom to a mime type. Returns false
// for protocol targets (TARGETS, TIMESTAMP, ...) that carry no data.
func (a *Atoms) MimeType(conn Conn, target xproto.Atom) (string, bool) {
	switch target {
	case a.UTF8String:
		return MimeTextUTF8, true
	case a.String, a.Text:
		return MimeTextPlain, true
	case a.Targets, a.Timestamp, a.Incr, xproto.AtomNone:
		return "", false
	}
	name, err := conn.AtomName(target)
	if err != nil || !strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// TargetForMime maps a mime type to a selection target atom, interning
// it if needed.
func (a *Atoms) TargetForMime(conn Conn, mime string) (xproto.Atom, error) {
	switch strings.ToLower(strings.ReplaceAll(mime, " ", "")) {
	case MimeTextUTF8, "utf8_string":
		return a.UTF8String, nil
	case MimeTextPlain:
		return a.String, nil
	}
	atoms, err := conn.InternAtoms([]string{mime})
	if err != nil {
		return xproto.AtomNone, err
	}
	return atoms[0], nil
}
