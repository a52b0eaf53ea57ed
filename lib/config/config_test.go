// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Xwayland.Program != "Xwayland" {
		t.Errorf("expected program=Xwayland, got %s", cfg.Xwayland.Program)
	}
	timeout, err := cfg.Xwayland.TerminationTimeoutDuration()
	if err != nil {
		t.Fatalf("TerminationTimeoutDuration: %v", err)
	}
	if timeout != 5*time.Second {
		t.Errorf("termination timeout = %v, want 5s", timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad_RequiresEnvironment(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if !errors.Is(err, ErrNoConfig) {
		t.Fatalf("Load() error = %v, want ErrNoConfig", err)
	}
}

func TestLoad_YAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "xwl.yaml")
	content := `
xwayland:
  program: /opt/xwayland/bin/Xwayland
  termination_timeout: 2s
  extra_arguments: ["-listenfd", "7"]
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Xwayland.Program != "/opt/xwayland/bin/Xwayland" {
		t.Errorf("program = %q", cfg.Xwayland.Program)
	}
	if want := []string{"-listenfd", "7"}; !reflect.DeepEqual(cfg.Xwayland.ExtraArguments, want) {
		t.Errorf("extra_arguments = %v, want %v", cfg.Xwayland.ExtraArguments, want)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
	// Unset fields keep their defaults.
	if cfg.Logging.Format != "auto" {
		t.Errorf("format = %q, want default auto", cfg.Logging.Format)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "xwl.jsonc")
	content := `{
	// Nested session for development.
	"xwayland": {
		"program": "Xwayland",
		"search_paths": ["/usr/local/bin", "/usr/bin",],
	},
	"runtime": {"state_file": "/run/user/1000/xwl.cbor"},
}`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if want := []string{"/usr/local/bin", "/usr/bin"}; !reflect.DeepEqual(cfg.Xwayland.SearchPaths, want) {
		t.Errorf("search_paths = %v, want %v", cfg.Xwayland.SearchPaths, want)
	}
	if cfg.Runtime.StateFile != "/run/user/1000/xwl.cbor" {
		t.Errorf("state_file = %q", cfg.Runtime.StateFile)
	}
	if cfg.Xwayland.TerminationTimeout != "5s" {
		t.Errorf("termination_timeout = %q, want default 5s", cfg.Xwayland.TerminationTimeout)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("XWL_TEST_DIR", "/srv/xwl")
	t.Setenv("XWL_TEST_EMPTY", "")

	tests := []struct {
		input string
		want  string
	}{
		{"${XWL_TEST_DIR}/state.cbor", "/srv/xwl/state.cbor"},
		{"${XWL_TEST_EMPTY:-/tmp}/state.cbor", "/tmp/state.cbor"},
		{"${XWL_TEST_DIR:-/tmp}", "/srv/xwl"},
		{"/plain/path", "/plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestExpandedDefaultStateFile(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/4242")
	cfg := Expanded()
	if cfg.Runtime.StateFile != "/run/user/4242/xwl-bridge.cbor" {
		t.Errorf("state_file = %q", cfg.Runtime.StateFile)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty program", func(c *Config) { c.Xwayland.Program = "" }, "xwayland.program is required"},
		{"bad timeout", func(c *Config) { c.Xwayland.TerminationTimeout = "soon" }, "xwayland.termination_timeout"},
		{"zero timeout", func(c *Config) { c.Xwayland.TerminationTimeout = "0s" }, "must be positive"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %v, want it to mention %q", err, test.wantErr)
			}
		})
	}
}
