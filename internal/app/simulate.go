// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/config"
	"github.com/relabs-tech/gesture_computer/internal/device"
)

// RunSimulate connects to addr as a fake watch and streams windows following
// pattern, one per window period. windows == 0 streams until ctx is done.
func RunSimulate(ctx context.Context, cfg *config.Config, addr string, pattern []device.Motion, windows int) error {
	log := slog.Default()
	conn, err := device.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	period := time.Duration(float64(cfg.WindowSamples) / cfg.SampleRateHz * float64(time.Second))
	src := device.NewMockSource(cfg.SampleRateHz, cfg.WindowSamples, pattern...)
	sim := device.NewSimulator(src, cfg.WindowSamples, period, log)

	log.Info("simulating device", "addr", addr, "period", period, "pattern", pattern)
	sent, err := sim.Run(ctx, conn, windows)
	log.Info("simulation finished", "windows", sent)
	return err
}
