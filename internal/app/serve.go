// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app wires configuration, the processing pipeline, the connection
// manager and a consumer into the run modes exposed by cmd/gesture_server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/gesture_computer/internal/config"
	"github.com/relabs-tech/gesture_computer/internal/console"
	"github.com/relabs-tech/gesture_computer/internal/observe"
	"github.com/relabs-tech/gesture_computer/internal/web"
)

// Version is reported as the service version in metrics.
var Version = "dev"

func initMetrics(ctx context.Context, log *slog.Logger) (*observe.Metrics, func()) {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		log.Warn("metrics exporter disabled", "err", err)
		return observe.DefaultMetrics(), func() {}
	}
	return observe.DefaultMetrics(), func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("metrics shutdown", "err", err)
		}
	}
}

// RunServe runs the TCP server with the web consumer until ctx is done.
func RunServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()
	met, stopMetrics := initMetrics(ctx, log)
	defer stopMetrics()

	st, err := newStack(cfg, log, met)
	if err != nil {
		return err
	}
	defer st.close()

	srv, err := st.newServer()
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	ws := web.New(web.Options{Bridge: st.bridge, Status: srv, Stream: true, Logger: log})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		return ws.ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.WebServerPort))
	})
	return g.Wait()
}

// RunConsole runs the TCP server with the terminal consumer. Logs go to
// console.log under RESULTS_DIR so they do not tear the screen. Quitting
// the console stops the server.
func RunConsole(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.ResultsDir, "console.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open console log: %w", err)
	}
	defer logFile.Close()
	log := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	met, stopMetrics := initMetrics(ctx, log)
	defer stopMetrics()

	st, err := newStack(cfg, log, met)
	if err != nil {
		return err
	}
	defer st.close()

	srv, err := st.newServer()
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return srv.Run(gctx) })
	if cfg.WebServerPort > 0 {
		// status and metrics only; the console drains the bridge
		ws := web.New(web.Options{Bridge: st.bridge, Status: srv, Logger: log})
		g.Go(func() error {
			return ws.ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.WebServerPort))
		})
	}
	g.Go(func() error {
		defer cancel()
		return console.Run(gctx, console.NewModel(console.Options{
			Bridge:  st.bridge,
			Status:  srv,
			Session: cfg.Session().SessionName(),
		}))
	})
	return g.Wait()
}
