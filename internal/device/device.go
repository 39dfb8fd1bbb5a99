// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package device simulates the watch: it produces synthetic IMU samples and
// streams them as delimited windows, the same way the firmware does.
package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"strings"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/imu"
	"github.com/relabs-tech/gesture_computer/internal/wire"
)

// Source is anything that can provide samples over time.
type Source interface {
	Next() (imu.Sample, error)
}

// Motion selects the synthetic movement of a window.
type Motion int

const (
	Rest Motion = iota
	PinchLeft
	PinchRight
)

func (m Motion) String() string {
	switch m {
	case PinchLeft:
		return "left"
	case PinchRight:
		return "right"
	}
	return "rest"
}

// ParseMotions reads a comma separated list of rest, left and right.
func ParseMotions(s string) ([]Motion, error) {
	var out []Motion
	for _, f := range strings.Split(s, ",") {
		switch strings.TrimSpace(f) {
		case "rest":
			out = append(out, Rest)
		case "left":
			out = append(out, PinchLeft)
		case "right":
			out = append(out, PinchRight)
		case "":
		default:
			return nil, fmt.Errorf("device: unknown motion %q", f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("device: empty motion pattern")
	}
	return out, nil
}

const (
	gravity    = 9.81
	swayHz     = 2
	tremorHz   = 25
	pinchGyro  = 3.0
	restWobble = 0.05
)

type mockSource struct {
	fs        float64
	windowLen int
	pattern   []Motion
	n         int
}

// NewMockSource creates a source at fs Hz whose motion follows pattern,
// one entry per windowLen samples, repeating.
func NewMockSource(fs float64, windowLen int, pattern ...Motion) Source {
	if len(pattern) == 0 {
		pattern = []Motion{Rest}
	}
	return &mockSource{fs: fs, windowLen: windowLen, pattern: pattern}
}

func (m *mockSource) Next() (imu.Sample, error) {
	t := float64(m.n) / m.fs
	motion := m.pattern[(m.n/m.windowLen)%len(m.pattern)]
	m.n++

	ms := t * 1000
	s := imu.Sample{
		AccelTS: ms,
		Ax:      restWobble * math.Sin(2*math.Pi*swayHz*t),
		Ay:      restWobble * math.Cos(2*math.Pi*swayHz*t),
		Az:      gravity,
		GyroTS:  ms,
	}
	burst := pinchGyro * math.Sin(2*math.Pi*tremorHz*t)
	switch motion {
	case PinchLeft:
		s.Gx = burst
		s.Ax += burst / 4
	case PinchRight:
		s.Gy = burst
		s.Ay += burst / 4
	}
	return s, nil
}

// Simulator streams windows from a Source.
type Simulator struct {
	src      Source
	rows     int
	interval time.Duration
	log      *slog.Logger
}

// NewSimulator emits one window of rows samples every interval.
func NewSimulator(src Source, rows int, interval time.Duration, log *slog.Logger) *Simulator {
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{src: src, rows: rows, interval: interval, log: log}
}

// Window pulls the next rows samples.
func (s *Simulator) Window() (imu.Window, error) {
	rows := make([][]float64, s.rows)
	for i := range rows {
		sample, err := s.src.Next()
		if err != nil {
			return imu.Window{}, err
		}
		rows[i] = sample.Row()
	}
	return imu.NewWindow(rows)
}

// Run writes count frames to w, one per interval, or until ctx is done when
// count is zero. It returns the number of frames written.
func (s *Simulator) Run(ctx context.Context, w io.Writer, count int) (int, error) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	sent := 0
	var buf []byte
	for count == 0 || sent < count {
		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
		}

		win, err := s.Window()
		if err != nil {
			return sent, err
		}
		buf = wire.AppendFrame(buf[:0], win.Text())
		if _, err := w.Write(buf); err != nil {
			return sent, fmt.Errorf("write frame: %w", err)
		}
		sent++
		s.log.Debug("sent window", "n", sent, "bytes", len(buf))
	}
	return sent, nil
}

// Dial connects to a gesture server.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}
