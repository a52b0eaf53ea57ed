// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/xwl/lib/config"
	"github.com/bureau-foundation/xwl/lib/process"
	"github.com/bureau-foundation/xwl/xwayland"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLoadConfig(t *testing.T) {
	directory := t.TempDir()
	valid := filepath.Join(directory, "valid.yaml")
	if err := os.WriteFile(valid, []byte("xwayland:\n  program: /opt/x/Xwayland\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	invalid := filepath.Join(directory, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("xwayland:\n  termination_timeout: soon\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("defaults without a file", func(t *testing.T) {
		t.Setenv(config.EnvironmentVariable, "")
		cfg, err := loadConfig("")
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Xwayland.Program != "Xwayland" {
			t.Errorf("Program = %q, want the default", cfg.Xwayland.Program)
		}
	})
	t.Run("environment", func(t *testing.T) {
		t.Setenv(config.EnvironmentVariable, valid)
		cfg, err := loadConfig("")
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Xwayland.Program != "/opt/x/Xwayland" {
			t.Errorf("Program = %q, want /opt/x/Xwayland", cfg.Xwayland.Program)
		}
	})
	t.Run("flag beats environment", func(t *testing.T) {
		t.Setenv(config.EnvironmentVariable, filepath.Join(directory, "missing.yaml"))
		if _, err := loadConfig(valid); err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
	})
	t.Run("invalid", func(t *testing.T) {
		if _, err := loadConfig(invalid); err == nil {
			t.Fatal("loadConfig accepted an unparsable termination timeout")
		}
	})
}

func TestStatusPrintsSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	started := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	err := xwayland.WriteState(path, xwayland.State{
		SessionID: "c0ffee00-0000-4000-8000-000000000001",
		PID:       os.Getpid(),
		Display:   ":12",
		Program:   "/usr/bin/Xwayland",
		StartedAt: started,
	})
	if err != nil {
		t.Fatalf("WriteState: %v", err)
	}

	var out bytes.Buffer
	if err := runStatus(&out, statusParams{stateFile: path}, started.Add(90*time.Second)); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	for _, want := range []string{":12", "c0ffee00-0000-4000-8000-000000000001", "(running)", "1m30s ago"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, out.String())
		}
	}

	output, err := execute(t, "status", "--state-file", path, "--diagnose")
	if err != nil {
		t.Fatalf("status --diagnose: %v", err)
	}
	if !strings.Contains(output, `"display": ":12"`) {
		t.Errorf("diagnostic output missing the display:\n%s", output)
	}
}

func TestStatusWithoutSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	_, err := execute(t, "status", "--state-file", path)
	if err == nil || !strings.Contains(err.Error(), "no Xwayland session") {
		t.Errorf("status error = %v, want no-session error", err)
	}
}

func TestVersion(t *testing.T) {
	output, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(output, "xwl-bridge ") {
		t.Errorf("version output = %q", output)
	}
}

func TestRunReportsLaunchFailureCode(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
	t.Setenv(config.EnvironmentVariable, "")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("WAYLAND_DISPLAY", "")

	_, err := execute(t, "run",
		"--xwayland", "/nonexistent/Xwayland",
		"--log-format", "json",
		"--log-level", "error",
	)
	if !errors.Is(err, xwayland.ErrLaunch) {
		t.Fatalf("run error = %v, want ErrLaunch", err)
	}
	if code := process.ExitCode(err); code != xwayland.CodeLaunchFailed {
		t.Errorf("exit code = %d, want %d", code, xwayland.CodeLaunchFailed)
	}
}
