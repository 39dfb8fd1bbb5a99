// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	serial "github.com/jacobsa/go-serial/serial"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/gesture_computer/internal/config"
	"github.com/relabs-tech/gesture_computer/internal/web"
)

// RunSerial reads the device wire protocol from a serial port instead of
// TCP, with the web consumer attached. The port is one session: it ends at
// the first read error or when ctx is done. Idle gaps do not end it.
func RunSerial(ctx context.Context, cfg *config.Config) error {
	if cfg.SerialPort == "" {
		return errors.New("SERIAL_PORT is required for serial mode")
	}
	log := slog.Default()
	met, stopMetrics := initMetrics(ctx, log)
	defer stopMetrics()

	st, err := newStack(cfg, log, met)
	if err != nil {
		return err
	}
	defer st.close()

	port, err := openSerial(cfg)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Info("serial port opened", "port", cfg.SerialPort, "baud", cfg.SerialBaudRate)

	ws := web.New(web.Options{Bridge: st.bridge, Stream: true, Logger: log})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ws.ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.WebServerPort))
	})
	g.Go(func() error {
		return serveSerial(gctx, st, port, "serial:"+cfg.SerialPort)
	})
	return g.Wait()
}

func serialOptions(cfg *config.Config) serial.OpenOptions {
	return serial.OpenOptions{
		PortName:              cfg.SerialPort,
		BaudRate:              uint(cfg.SerialBaudRate),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	}
}

// openSerial opens the port in polling mode: a read returns after at most
// 100ms so ctx is observed between windows. The port file is left in
// blocking mode by the driver, so closing it would not interrupt a
// MinimumReadSize read.
func openSerial(cfg *config.Config) (io.ReadWriteCloser, error) {
	port, err := serial.Open(serialOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.SerialPort, err)
	}
	return port, nil
}

// serveSerial runs one session over the port until ctx is done or the
// port fails.
func serveSerial(ctx context.Context, st *stack, port io.Reader, peer string) error {
	err := ingest(ctx, st, pollingPort{port}, peer, nil)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pollingPort reports the empty read of an expired inter-character timer
// as no data instead of EOF, so gaps between windows keep the session open.
type pollingPort struct {
	r io.Reader
}

func (p pollingPort) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}
