// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/config"
	"github.com/relabs-tech/gesture_computer/internal/gesture"
	"github.com/relabs-tech/gesture_computer/internal/observe"
)

// timeoutPort behaves like a serial port opened with MinimumReadSize 0: an
// idle read waits for the inter-character timer and returns (0, io.EOF).
type timeoutPort struct {
	mu      sync.Mutex
	pending []byte
	failed  error
}

func (p *timeoutPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed != nil {
		return 0, p.failed
	}
	if len(p.pending) == 0 {
		p.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		p.mu.Lock()
		return 0, io.EOF
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *timeoutPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, b...)
	return len(b), nil
}

func (p *timeoutPort) fail(err error) {
	p.mu.Lock()
	p.failed = err
	p.mu.Unlock()
}

// checkSerialSurvivesIdle runs a serial session over port, stays silent for
// longer than the read timeout, then sends one frame through device and
// expects it to be classified before ctx is cancelled.
func checkSerialSurvivesIdle(t *testing.T, cfg *config.Config, port io.Reader, device io.Writer) {
	t.Helper()
	st, err := newStack(cfg, slogDiscard(), observe.Discard())
	if err != nil {
		t.Fatalf("newStack: %v", err)
	}
	defer st.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serveSerial(ctx, st, port, "serial:test") }()

	time.Sleep(500 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("session ended while idle: %v", err)
	default:
	}
	if !st.bridge.Status().Connected {
		t.Fatal("bridge disconnected while the port was idle")
	}

	if _, err := device.Write([]byte(frame(400))); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	var got []gesture.Action
	for len(got) == 0 && time.Now().Before(deadline) {
		for _, ev := range st.bridge.Poll() {
			got = append(got, ev.Action)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(got) != 1 || got[0] != gesture.Left {
		t.Fatalf("actions = %v", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveSerial = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serial session did not stop on cancel")
	}
	if st.bridge.Status().Connected {
		t.Error("bridge still connected after cancel")
	}
}

func TestServeSerialSurvivesIdleGap(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventDBPath = ""
	port := &timeoutPort{}
	checkSerialSurvivesIdle(t, cfg, port, port)
}

func TestServeSerialEndsOnPortError(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventDBPath = ""
	st, err := newStack(cfg, slogDiscard(), observe.Discard())
	if err != nil {
		t.Fatalf("newStack: %v", err)
	}
	defer st.close()

	unplugged := errors.New("read /dev/ttyUSB0: input/output error")
	port := &timeoutPort{}
	port.fail(unplugged)
	if err := serveSerial(context.Background(), st, port, "serial:test"); !errors.Is(err, unplugged) {
		t.Fatalf("serveSerial = %v, want %v", err, unplugged)
	}
	if st.bridge.Status().Connected {
		t.Error("bridge still connected after port error")
	}
}

func TestSerialOptionsPoll(t *testing.T) {
	cfg := config.Default()
	cfg.SerialPort = "/dev/ttyUSB0"
	opts := serialOptions(cfg)
	if opts.MinimumReadSize != 0 || opts.InterCharacterTimeout != 100 {
		t.Errorf("options = %+v, want polling reads", opts)
	}
	if opts.BaudRate != uint(cfg.SerialBaudRate) || opts.PortName != "/dev/ttyUSB0" {
		t.Errorf("options = %+v", opts)
	}
}
