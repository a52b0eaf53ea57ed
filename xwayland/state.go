// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xwayland

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/xwl/lib/codec"
)

// State records a running Xwayland session.
type State struct {
	SessionID string    `cbor:"session_id"`
	PID       int       `cbor:"pid"`
	Display   string    `cbor:"display"`
	Program   string    `cbor:"program"`
	StartedAt time.Time `cbor:"started_at"`
}

// WriteState atomically replaces the state file at path.
func WriteState(path string, state State) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("creating state directory %s: %w", directory, err)
	}
	temporary, err := os.CreateTemp(directory, ".xwl-state-*")
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}
	temporaryPath := temporary.Name()
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing state file: %w", err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing state file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("installing state file %s: %w", path, err)
	}
	return nil
}

// ReadState reads the state file at path.
func ReadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state State
	if err := codec.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &state, nil
}

// RemoveState deletes the state file. A missing file is not an error.
func RemoveState(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
