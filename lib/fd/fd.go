// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// ErrConsumed is returned when ownership of a descriptor has already
// been transferred or the descriptor was closed.
var ErrConsumed = errors.New("descriptor already consumed")

// Owned is a descriptor with a single owner. The zero value is an empty
// (already consumed) descriptor.
//
// Owned is not safe for concurrent use.
type Owned struct {
	descriptor int
	name       string
	valid      bool
}

// New takes ownership of a raw descriptor. The name is used for the
// *os.File produced by File and in error messages.
func New(descriptor int, name string) *Owned {
	return &Owned{descriptor: descriptor, name: name, valid: descriptor >= 0}
}

// Pipe returns the read and write ends of a new close-on-exec pipe.
func Pipe(name string) (read, write *Owned, err error) {
	var descriptors [2]int
	if err := unix.Pipe2(descriptors[:], unix.O_CLOEXEC); err != nil {
		return nil, nil, fmt.Errorf("creating pipe %s: %w", name, err)
	}
	return New(descriptors[0], name+"-read"), New(descriptors[1], name+"-write"), nil
}

// Socketpair returns two connected close-on-exec stream sockets.
func Socketpair(name string) (local, remote *Owned, err error) {
	descriptors, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("creating socketpair %s: %w", name, err)
	}
	return New(descriptors[0], name+"-local"), New(descriptors[1], name+"-remote"), nil
}

// Name returns the descriptor's diagnostic name.
func (o *Owned) Name() string { return o.name }

// Valid reports whether the Owned still holds a descriptor.
func (o *Owned) Valid() bool { return o != nil && o.valid }

// Raw returns the descriptor number without transferring ownership, or
// -1 if the descriptor has been consumed.
func (o *Owned) Raw() int {
	if !o.Valid() {
		return -1
	}
	return o.descriptor
}

// Dup returns an independently owned close-on-exec duplicate.
func (o *Owned) Dup() (*Owned, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("duplicating %s: %w", o.name, ErrConsumed)
	}
	duplicate, err := unix.FcntlInt(uintptr(o.descriptor), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("duplicating %s: %w", o.name, err)
	}
	return New(duplicate, o.name+"-dup"), nil
}

// SetNonblock switches the descriptor to non-blocking mode. Call it
// before File when the resulting *os.File should use the runtime
// poller, so that closing the file interrupts a blocked Read.
func (o *Owned) SetNonblock() error {
	if !o.Valid() {
		return fmt.Errorf("setting %s non-blocking: %w", o.name, ErrConsumed)
	}
	if err := unix.SetNonblock(o.descriptor, true); err != nil {
		return fmt.Errorf("setting %s non-blocking: %w", o.name, err)
	}
	return nil
}

// File transfers ownership into an *os.File. The Owned is empty
// afterwards; a second call returns ErrConsumed.
func (o *Owned) File() (*os.File, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("transferring %s: %w", o.name, ErrConsumed)
	}
	file := os.NewFile(uintptr(o.descriptor), o.name)
	o.valid = false
	o.descriptor = -1
	if file == nil {
		return nil, fmt.Errorf("transferring %s: invalid descriptor", o.name)
	}
	return file, nil
}

// Close closes the descriptor if it is still owned. Safe to call on a
// nil or consumed Owned.
func (o *Owned) Close() error {
	if !o.Valid() {
		return nil
	}
	descriptor := o.descriptor
	o.valid = false
	o.descriptor = -1
	if err := unix.Close(descriptor); err != nil {
		return fmt.Errorf("closing %s: %w", o.name, err)
	}
	return nil
}

// ExtraFile appends file to command.ExtraFiles and returns the
// descriptor number the child process will see for it.
func ExtraFile(command *exec.Cmd, file *os.File) int {
	command.ExtraFiles = append(command.ExtraFiles, file)
	return 2 + len(command.ExtraFiles)
}
