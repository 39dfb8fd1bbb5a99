// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filesink stores each session as an experiment directory:
//
//	<base>/<session>_<YYYYMMDD_HHMMSS>/
//	    sensor_data/conn_<n>/window_<id>.csv
//	    event_log.json
//
// Windows are written as received (text fields). The event log is rewritten
// whenever a connection ends and on Close.
package filesink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/sink"
)

const startLayout = "20060102_150405"

// Summary heads event_log.json.
type Summary struct {
	ExperimentName string `json:"experiment_name"`
	StartTime      string `json:"start_time"`
	Windows        int    `json:"total_windows"`
	Predictions    int    `json:"total_predictions"`
	LeftActions    int    `json:"left_actions"`
	RightActions   int    `json:"right_actions"`
	RejectedFrames int    `json:"rejected_frames"`
	Connections    int    `json:"connections"`
}

type eventLog struct {
	Summary Summary      `json:"summary"`
	Logs    []sink.Event `json:"logs"`
}

type experiment struct {
	mu      sync.Mutex
	dir     string
	summary Summary
	events  []sink.Event
}

// Sink is a sink.Sink writing under a base directory.
type Sink struct {
	base string
	now  func() time.Time

	mu   sync.Mutex
	exps map[string]*experiment
}

// New returns a Sink rooted at base. Directories are created lazily.
func New(base string) *Sink {
	return &Sink{base: base, now: time.Now, exps: make(map[string]*experiment)}
}

func (s *Sink) experiment(name string) (*experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.exps[name]; ok {
		return e, nil
	}
	start := s.now().Format(startLayout)
	dir := filepath.Join(s.base, fmt.Sprintf("%s_%s", name, start))
	if err := os.MkdirAll(filepath.Join(dir, "sensor_data"), 0o755); err != nil {
		return nil, fmt.Errorf("filesink: create experiment dir: %w", err)
	}
	e := &experiment{
		dir:     dir,
		summary: Summary{ExperimentName: name, StartTime: start},
	}
	s.exps[name] = e
	return e, nil
}

// Dir returns the experiment directory for a session, if it was created.
func (s *Sink) Dir(session string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exps[session]
	if !ok {
		return "", false
	}
	return e.dir, true
}

// SaveWindow writes the window rows to window_<id>.csv.
func (s *Sink) SaveWindow(_ context.Context, rec sink.WindowRecord) error {
	e, err := s.experiment(rec.Session)
	if err != nil {
		return err
	}
	connDir := filepath.Join(e.dir, "sensor_data", fmt.Sprintf("conn_%d", rec.ConnID))
	if err := os.MkdirAll(connDir, 0o755); err != nil {
		return fmt.Errorf("filesink: create window dir: %w", err)
	}
	path := filepath.Join(connDir, fmt.Sprintf("window_%d.csv", rec.WindowID))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("filesink: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rec.Window.Fields); err != nil {
		f.Close()
		return fmt.Errorf("filesink: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("filesink: close %s: %w", path, err)
	}

	e.mu.Lock()
	e.summary.Windows++
	e.mu.Unlock()
	return nil
}

// RecordEvent appends ev to the session log.
func (s *Sink) RecordEvent(_ context.Context, ev sink.Event) error {
	e, err := s.experiment(ev.Session)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.events = append(e.events, ev)
	switch ev.Kind {
	case sink.KindConnected:
		e.summary.Connections++
	case sink.KindPrediction:
		e.summary.Predictions++
	case sink.KindFrameRejected:
		e.summary.RejectedFrames++
	case sink.KindAction:
		switch ev.Action {
		case "LEFT":
			e.summary.LeftActions++
		case "RIGHT":
			e.summary.RightActions++
		}
	}
	e.mu.Unlock()

	if ev.Kind == sink.KindDisconnected {
		return e.flush()
	}
	return nil
}

func (e *experiment) flush() error {
	e.mu.Lock()
	data, err := json.MarshalIndent(eventLog{Summary: e.summary, Logs: e.events}, "", "    ")
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("filesink: encode event log: %w", err)
	}
	path := filepath.Join(e.dir, "event_log.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("filesink: write %s: %w", path, err)
	}
	return nil
}

// Close writes every event log.
func (s *Sink) Close() error {
	s.mu.Lock()
	exps := make([]*experiment, 0, len(s.exps))
	for _, e := range s.exps {
		exps = append(exps, e)
	}
	s.mu.Unlock()

	var firstErr error
	for _, e := range exps {
		if err := e.flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ sink.Sink = (*Sink)(nil)
