// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/xwl/lib/config"
	"github.com/bureau-foundation/xwl/lib/process"
	"github.com/bureau-foundation/xwl/lib/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		process.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xwl-bridge",
		Short: "Run Xwayland and bridge X11 selections to Wayland",
		Long: `xwl-bridge starts a rootless Xwayland server connected to the Wayland
compositor named by WAYLAND_DISPLAY, acts as its window manager
connection, and bridges the CLIPBOARD selection and XDND drags.

Configuration is read from --config or $XWL_CONFIG (YAML, or JSON with
comments). There is no automatic discovery.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "xwl-bridge %s\n", version.Full())
		},
	}
}

// addConfigFlag registers --config on flags.
func addConfigFlag(flags *pflag.FlagSet, path *string) {
	flags.StringVar(path, "config", "", "config file (default: $"+config.EnvironmentVariable+", then built-in defaults)")
}

// loadConfig loads path, or the file named by XWL_CONFIG when path is
// empty, falling back to the defaults when neither is set.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
		if errors.Is(err, config.ErrNoConfig) {
			cfg, err = config.Expanded(), nil
		}
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
