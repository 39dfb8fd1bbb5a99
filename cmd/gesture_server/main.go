// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/gesture_computer/internal/app"
	"github.com/relabs-tech/gesture_computer/internal/config"
	"github.com/relabs-tech/gesture_computer/internal/device"
)

var (
	configPath string

	simulateAddr    string
	simulatePattern string
	simulateWindows int

	monitorEvents bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gesture_server",
		Short:         "Wearable gesture recognition server",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServeCmd,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the KEY=VALUE config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Accept the watch over TCP and stream actions to the web consumer",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "console",
		Short: "Accept the watch over TCP and show actions in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runConsoleCmd,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "replay <capture>",
		Short: "Run a recorded byte stream through the recognizer",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serial",
		Short: "Read the watch stream from SERIAL_PORT instead of TCP",
		Args:  cobra.NoArgs,
		RunE:  runSerialCmd,
	})
	rootCmd.AddCommand(newSimulateCmd())
	rootCmd.AddCommand(newMonitorCmd())
	return rootCmd
}

// setup loads the config, installs the default logger and returns a
// context cancelled on SIGINT/SIGTERM.
func setup() (*config.Config, context.Context, context.CancelFunc, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return cfg, ctx, stop, nil
}

func runServeCmd(_ *cobra.Command, _ []string) error {
	cfg, ctx, stop, err := setup()
	if err != nil {
		return err
	}
	defer stop()
	slog.Info("starting gesture server", "config", configPath, "session", cfg.Session().SessionName())
	return app.RunServe(ctx, cfg)
}

func runConsoleCmd(_ *cobra.Command, _ []string) error {
	cfg, ctx, stop, err := setup()
	if err != nil {
		return err
	}
	defer stop()
	return app.RunConsole(ctx, cfg)
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	cfg, ctx, stop, err := setup()
	if err != nil {
		return err
	}
	defer stop()
	_, err = app.RunReplay(ctx, cfg, args[0], cmd.OutOrStdout())
	return err
}

func runSerialCmd(_ *cobra.Command, _ []string) error {
	cfg, ctx, stop, err := setup()
	if err != nil {
		return err
	}
	defer stop()
	slog.Info("starting serial ingest", "port", cfg.SerialPort, "baud", cfg.SerialBaudRate)
	return app.RunSerial(ctx, cfg)
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Act as the watch and stream synthetic windows to a server",
		Args:  cobra.NoArgs,
		RunE:  runSimulateCmd,
	}
	cmd.Flags().StringVar(&simulateAddr, "addr", "127.0.0.1:8080", "server address")
	cmd.Flags().StringVar(&simulatePattern, "pattern", "rest,left,rest,right", "motion per window: rest, left, right")
	cmd.Flags().IntVar(&simulateWindows, "windows", 0, "windows to send (0: until interrupted)")
	return cmd
}

func runSimulateCmd(_ *cobra.Command, _ []string) error {
	pattern, err := device.ParseMotions(simulatePattern)
	if err != nil {
		return err
	}
	cfg, ctx, stop, err := setup()
	if err != nil {
		return err
	}
	defer stop()
	return app.RunSimulate(ctx, cfg, simulateAddr, pattern, simulateWindows)
}

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Follow a running server's actions and status over MQTT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, ctx, stop, err := setup()
			if err != nil {
				return err
			}
			defer stop()
			return app.RunMonitor(ctx, cfg, cmd.OutOrStdout(), monitorEvents)
		},
	}
	cmd.Flags().BoolVar(&monitorEvents, "events", false, "also print every event kind")
	return cmd
}
