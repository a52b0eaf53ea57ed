// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bureau-foundation/xwl/lib/codec"
	"github.com/bureau-foundation/xwl/xwayland"
)

type statusParams struct {
	configPath string
	stateFile  string
	diagnose   bool
}

func newStatusCmd() *cobra.Command {
	var params statusParams
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running Xwayland session",
		Long: `Reads the session state file written by "xwl-bridge run" and reports
the display, process, and whether the process is still alive. With
--diagnose the raw CBOR record is printed in diagnostic notation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.OutOrStdout(), params, time.Now())
		},
	}
	flags := cmd.Flags()
	addConfigFlag(flags, &params.configPath)
	flags.StringVar(&params.stateFile, "state-file", "", "state file, overriding runtime.state_file")
	flags.BoolVar(&params.diagnose, "diagnose", false, "print the raw record in CBOR diagnostic notation")
	return cmd
}

func runStatus(out io.Writer, params statusParams, now time.Time) error {
	path := params.stateFile
	if path == "" {
		cfg, err := loadConfig(params.configPath)
		if err != nil {
			return err
		}
		path = cfg.Runtime.StateFile
	}
	if path == "" {
		return errors.New("no state file configured")
	}

	if params.diagnose {
		data, err := os.ReadFile(path)
		if err != nil {
			return noSession(path, err)
		}
		notation, err := codec.Diagnose(data)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		fmt.Fprintln(out, notation)
		return nil
	}

	state, err := xwayland.ReadState(path)
	if err != nil {
		return noSession(path, err)
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "SESSION\t%s\n", state.SessionID)
	fmt.Fprintf(writer, "DISPLAY\t%s\n", state.Display)
	fmt.Fprintf(writer, "PID\t%d (%s)\n", state.PID, processState(state.PID))
	fmt.Fprintf(writer, "PROGRAM\t%s\n", state.Program)
	fmt.Fprintf(writer, "STARTED\t%s (%s ago)\n",
		state.StartedAt.Local().Format(time.RFC3339),
		now.Sub(state.StartedAt).Truncate(time.Second),
	)
	return writer.Flush()
}

func noSession(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no Xwayland session recorded at %s", path)
	}
	return err
}

// processState reports whether pid still exists.
func processState(pid int) string {
	if pid <= 0 {
		return "unknown"
	}
	switch err := syscall.Kill(pid, 0); {
	case err == nil, errors.Is(err, syscall.EPERM):
		return "running"
	default:
		return "gone"
	}
}
