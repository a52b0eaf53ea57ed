// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json":    FormatJSON,
		"JSON":    FormatJSON,
		"text":    FormatText,
		"human":   FormatText,
		"auto":    FormatAuto,
		"garbage": FormatAuto,
	}
	for input, want := range tests {
		if got := ParseFormat(input); got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestAutoFormatUsesJSONOffTerminal(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, FormatAuto, slog.LevelInfo)
	logger.Info("xwayland started", "display", ":1")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buffer.String())
	}
	if record["msg"] != "xwayland started" || record["display"] != ":1" {
		t.Errorf("record = %v", record)
	}
}

func TestTextFormat(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, FormatText, slog.LevelInfo)
	logger.Info("claimed selection", "selection", "WM_S0")

	output := buffer.String()
	if !strings.Contains(output, "claimed selection") || !strings.Contains(output, "selection=WM_S0") {
		t.Errorf("text output = %q", output)
	}
}

func TestStdLoggerRoutesAtDebug(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, FormatJSON, slog.LevelDebug)
	StdLogger(logger, "xgb").Print("unexpected reply")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["level"] != "DEBUG" || record["component"] != "xgb" {
		t.Errorf("record = %v", record)
	}
}
