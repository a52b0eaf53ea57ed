// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bureau-foundation/xwl/compositor"
	"github.com/bureau-foundation/xwl/lib/config"
	"github.com/bureau-foundation/xwl/lib/eventloop"
	"github.com/bureau-foundation/xwl/lib/logging"
	"github.com/bureau-foundation/xwl/lib/process"
	"github.com/bureau-foundation/xwl/native"
	"github.com/bureau-foundation/xwl/xwayland"
)

type runParams struct {
	configPath string
	program    string
	logLevel   string
	logFormat  string
}

func newRunCmd() *cobra.Command {
	var params runParams
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Supervise an Xwayland session",
		Long: `Starts Xwayland with -rootless, hands it a fresh connection to the
Wayland compositor, claims WM_S0 over the -wm socket, and bridges
selections until SIGINT or SIGTERM. DISPLAY for X11 clients is recorded
in the session state file (see "xwl-bridge status").`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBridge(cmd.Context(), params)
		},
	}
	flags := cmd.Flags()
	addConfigFlag(flags, &params.configPath)
	flags.StringVar(&params.program, "xwayland", "", "Xwayland executable, overriding xwayland.program")
	flags.StringVar(&params.logLevel, "log-level", "", "debug, info, warn, or error, overriding logging.level")
	flags.StringVar(&params.logFormat, "log-format", "", "auto, text, or json, overriding logging.format")
	return cmd
}

// applyOverrides copies explicitly set flags into cfg.
func (p runParams) applyOverrides(cfg *config.Config) {
	if p.program != "" {
		cfg.Xwayland.Program = p.program
	}
	if p.logLevel != "" {
		cfg.Logging.Level = p.logLevel
	}
	if p.logFormat != "" {
		cfg.Logging.Format = p.logFormat
	}
}

func runBridge(ctx context.Context, params runParams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := logging.Setup(logging.ParseFormat(cfg.Logging.Format), logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The loop outlives ctx so that Stop can still run on it after a
	// signal.
	loop := eventloop.New()
	loopContext, cancelLoop := context.WithCancel(context.Background())
	go loop.Run(loopContext)
	defer func() {
		cancelLoop()
		<-loop.Stopped()
	}()

	application := compositor.New(loop, logger, os.Environ())
	server := native.NewMemory(
		native.WithLogger(logger.With("component", "native")),
		native.WithConnectionFactory(native.EnvironmentConnectionFactory()),
	)
	supervisor := xwayland.New(application, server, xwayland.Options{
		Xwayland:  cfg.Xwayland,
		StateFile: cfg.Runtime.StateFile,
	})

	critical := make(chan int, 1)
	stopped := make(chan struct{}, 1)
	var startErr error
	err = loop.Invoke(ctx, func() {
		supervisor.Started.Connect(func(struct{}) {
			logger.Info("bridge ready",
				"display", supervisor.Display(),
				"pid", supervisor.PID(),
				"state_file", cfg.Runtime.StateFile,
			)
		})
		supervisor.CriticalError.Connect(func(code int) {
			select {
			case critical <- code:
			default:
			}
		})
		supervisor.Stopped.Connect(func(struct{}) {
			select {
			case stopped <- struct{}{}:
			default:
			}
		})
		startErr = supervisor.Start()
	})
	if err != nil {
		return err
	}
	if startErr != nil {
		code := xwayland.CodeLaunchFailed
		select {
		case code = <-critical:
		default:
		}
		return &process.ExitError{Code: code, Err: startErr}
	}

	var result error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	case code := <-critical:
		result = &process.ExitError{Code: code, Err: fmt.Errorf("Xwayland critical error %d", code)}
	case <-stopped:
		result = errors.New("Xwayland exited")
	}

	if err := loop.Invoke(context.Background(), supervisor.Stop); err != nil {
		logger.Warn("stopping Xwayland", "error", err)
	}
	if result != nil {
		logger.Error("xwl-bridge exiting", "error", result)
	}
	return result
}
