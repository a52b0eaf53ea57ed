// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "XWL_CONFIG"

// ErrNoConfig is returned by Load when XWL_CONFIG is not set.
var ErrNoConfig = errors.New(EnvironmentVariable + " environment variable not set")

// Config is the configuration for the xwl bridge.
type Config struct {
	// Xwayland configures the helper process.
	Xwayland XwaylandConfig `yaml:"xwayland"`

	// Runtime configures runtime state locations.
	Runtime RuntimeConfig `yaml:"runtime"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`
}

// XwaylandConfig configures how the legacy X server is launched and
// stopped.
type XwaylandConfig struct {
	// Program is the executable name or path.
	// Default: Xwayland
	Program string `yaml:"program"`

	// SearchPaths are directories checked for Program, in order,
	// before falling back to PATH. Ignored when Program contains a
	// slash.
	SearchPaths []string `yaml:"search_paths"`

	// TerminationTimeout bounds how long Stop waits for the process to
	// exit after SIGTERM. Go duration syntax.
	// Default: 5s
	TerminationTimeout string `yaml:"termination_timeout"`

	// ExtraArguments are appended after the mandatory arguments.
	ExtraArguments []string `yaml:"extra_arguments"`
}

// RuntimeConfig configures runtime state.
type RuntimeConfig struct {
	// StateFile is where the running session is recorded. Empty
	// disables the state file.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/xwl-bridge.cbor
	StateFile string `yaml:"state_file"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Format is auto, text, or json.
	Format string `yaml:"format"`

	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
}

// Default returns the built-in configuration. Loaded files are merged
// on top of it.
func Default() *Config {
	return &Config{
		Xwayland: XwaylandConfig{
			Program:            "Xwayland",
			TerminationTimeout: "5s",
		},
		Runtime: RuntimeConfig{
			StateFile: "${XDG_RUNTIME_DIR:-/tmp}/xwl-bridge.cbor",
		},
		Logging: LoggingConfig{
			Format: "auto",
			Level:  "info",
		},
	}
}

// Load loads configuration from the file named by XWL_CONFIG. Returns
// ErrNoConfig if the variable is unset; there is no file discovery.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, ErrNoConfig
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path. Files ending in .json or
// .jsonc may contain comments and trailing commas; anything else is
// parsed as YAML.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data, err = jsoncToYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// jsoncToYAML strips comments and trailing commas, then re-encodes the
// document as YAML so the yaml struct tags govern both formats.
func jsoncToYAML(data []byte) ([]byte, error) {
	var document map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return nil, err
	}
	return yaml.Marshal(document)
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	c.Xwayland.Program = expandVars(c.Xwayland.Program)
	for i, path := range c.Xwayland.SearchPaths {
		c.Xwayland.SearchPaths[i] = expandVars(path)
	}
	c.Runtime.StateFile = expandVars(c.Runtime.StateFile)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Expanded returns a copy of Default with variables expanded, for use
// when no file is configured.
func Expanded() *Config {
	cfg := Default()
	cfg.expandVariables()
	return cfg
}

// TerminationTimeoutDuration parses TerminationTimeout.
func (x XwaylandConfig) TerminationTimeoutDuration() (time.Duration, error) {
	duration, err := time.ParseDuration(x.TerminationTimeout)
	if err != nil {
		return 0, fmt.Errorf("xwayland.termination_timeout: %w", err)
	}
	return duration, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Xwayland.Program == "" {
		errs = append(errs, fmt.Errorf("xwayland.program is required"))
	}
	if duration, err := c.Xwayland.TerminationTimeoutDuration(); err != nil {
		errs = append(errs, err)
	} else if duration <= 0 {
		errs = append(errs, fmt.Errorf("xwayland.termination_timeout must be positive, got %s", c.Xwayland.TerminationTimeout))
	}

	formats := []string{"auto", "text", "json"}
	if !contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}
	levels := []string{"debug", "info", "warn", "error"}
	if !contains(levels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
