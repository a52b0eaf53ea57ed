// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type sampleRecord struct {
	Display   string    `cbor:"display"`
	PID       int       `cbor:"pid"`
	StartedAt time.Time `cbor:"started_at"`
	Note      string    `cbor:"note,omitempty"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	record := sampleRecord{
		Display:   ":1",
		PID:       4242,
		StartedAt: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two encodings of the same record differ")
	}

	var decoded sampleRecord
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Display != ":1" || decoded.PID != 4242 || !decoded.StartedAt.Equal(record.StartedAt) {
		t.Errorf("decoded = %+v, want %+v", decoded, record)
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{"display": ":3", "future_field": true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
	if decoded.Display != ":3" {
		t.Errorf("Display = %q, want %q", decoded.Display, ":3")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(sampleRecord{Display: ":1"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"display": ":1"`) {
		t.Errorf("Diagnose = %s, want it to contain the display field", diagnostic)
	}
}
