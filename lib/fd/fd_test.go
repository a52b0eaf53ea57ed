// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fd

import (
	"errors"
	"io"
	"os/exec"
	"testing"
)

func TestPipeTransfersData(t *testing.T) {
	read, write, err := Pipe("test")
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer read.Close()
	defer write.Close()

	writer, err := write.File()
	if err != nil {
		t.Fatalf("write.File: %v", err)
	}
	reader, err := read.File()
	if err != nil {
		t.Fatalf("read.File: %v", err)
	}
	defer reader.Close()

	if _, err := writer.Write([]byte("1\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	writer.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "1\n" {
		t.Errorf("read = %q, want %q", data, "1\n")
	}
}

func TestFileConsumesOnce(t *testing.T) {
	read, write, err := Pipe("once")
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer write.Close()

	file, err := read.File()
	if err != nil {
		t.Fatalf("first File: %v", err)
	}
	defer file.Close()

	if read.Valid() {
		t.Error("Valid() = true after File, want false")
	}
	if read.Raw() != -1 {
		t.Errorf("Raw() = %d after File, want -1", read.Raw())
	}
	if _, err := read.File(); !errors.Is(err, ErrConsumed) {
		t.Errorf("second File error = %v, want ErrConsumed", err)
	}
	if _, err := read.Dup(); !errors.Is(err, ErrConsumed) {
		t.Errorf("Dup after File error = %v, want ErrConsumed", err)
	}
	// Closing a consumed descriptor must not touch the transferred file.
	if err := read.Close(); err != nil {
		t.Errorf("Close after File: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	local, remote, err := Socketpair("idempotent")
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer remote.Close()

	if err := local.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := local.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	var empty *Owned
	if err := empty.Close(); err != nil {
		t.Errorf("Close on nil: %v", err)
	}
}

func TestDupIsIndependent(t *testing.T) {
	local, remote, err := Socketpair("dup")
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer local.Close()

	duplicate, err := remote.Dup()
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	if duplicate.Raw() == remote.Raw() {
		t.Fatalf("Dup returned the same descriptor %d", duplicate.Raw())
	}
	remote.Close()

	// The duplicate still refers to the open socket.
	peer, err := duplicate.File()
	if err != nil {
		t.Fatalf("duplicate.File: %v", err)
	}
	defer peer.Close()
	localFile, err := local.File()
	if err != nil {
		t.Fatalf("local.File: %v", err)
	}
	defer localFile.Close()

	if _, err := peer.Write([]byte("x")); err != nil {
		t.Fatalf("Write through duplicate: %v", err)
	}
	buffer := make([]byte, 1)
	if _, err := io.ReadFull(localFile, buffer); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if buffer[0] != 'x' {
		t.Errorf("read %q, want %q", buffer, "x")
	}
}

func TestExtraFileNumbering(t *testing.T) {
	command := exec.Command("true")
	first, second, err := Pipe("numbering")
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	firstFile, _ := first.File()
	secondFile, _ := second.File()
	defer firstFile.Close()
	defer secondFile.Close()

	if got := ExtraFile(command, firstFile); got != 3 {
		t.Errorf("first ExtraFile = %d, want 3", got)
	}
	if got := ExtraFile(command, secondFile); got != 4 {
		t.Errorf("second ExtraFile = %d, want 4", got)
	}
}
