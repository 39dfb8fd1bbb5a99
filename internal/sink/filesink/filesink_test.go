// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package filesink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/imu"
	"github.com/relabs-tech/gesture_computer/internal/sink"
)

func testWindow(t *testing.T) imu.Window {
	t.Helper()
	w, err := imu.ParseWindow("1,0.5,2,3,1,4,5,6\n2,0.5,2,3,2,4,5,6", imu.Shape{Rows: 2, Channels: imu.WireChannels})
	if err != nil {
		t.Fatalf("ParseWindow: %v", err)
	}
	return w
}

func TestSink_WritesExperimentLayout(t *testing.T) {
	base := t.TempDir()
	s := New(base)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC) }
	ctx := context.Background()

	rec := sink.WindowRecord{Session: "user7_c1", ConnID: 2, WindowID: 3, Window: testWindow(t)}
	if err := s.SaveWindow(ctx, rec); err != nil {
		t.Fatalf("SaveWindow: %v", err)
	}

	dir, ok := s.Dir("user7_c1")
	if !ok {
		t.Fatal("experiment dir not registered")
	}
	if want := filepath.Join(base, "user7_c1_20260301_140509"); dir != want {
		t.Fatalf("dir = %q, want %q", dir, want)
	}

	f, err := os.Open(filepath.Join(dir, "sensor_data", "conn_2", "window_3.csv"))
	if err != nil {
		t.Fatalf("open window csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || rows[1][1] != "0.5" {
		t.Fatalf("rows = %v", rows)
	}

	events := []sink.Event{
		{Kind: sink.KindConnected, Session: "user7_c1"},
		{Kind: sink.KindPrediction, Session: "user7_c1", Label: "pinchL"},
		{Kind: sink.KindAction, Session: "user7_c1", Action: "LEFT"},
		{Kind: sink.KindFrameRejected, Session: "user7_c1", Detail: "shape"},
		{Kind: sink.KindDisconnected, Session: "user7_c1"},
	}
	for _, ev := range events {
		if err := s.RecordEvent(ctx, ev); err != nil {
			t.Fatalf("RecordEvent(%s): %v", ev.Kind, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "event_log.json"))
	if err != nil {
		t.Fatalf("event log not flushed on disconnect: %v", err)
	}
	var log eventLog
	if err := json.Unmarshal(data, &log); err != nil {
		t.Fatalf("decode event log: %v", err)
	}
	want := Summary{
		ExperimentName: "user7_c1",
		StartTime:      "20260301_140509",
		Windows:        1,
		Predictions:    1,
		LeftActions:    1,
		RejectedFrames: 1,
		Connections:    1,
	}
	if log.Summary != want {
		t.Errorf("summary = %+v, want %+v", log.Summary, want)
	}
	if len(log.Logs) != len(events) {
		t.Errorf("logs = %d, want %d", len(log.Logs), len(events))
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSink_CloseWithoutSessions(t *testing.T) {
	if err := New(t.TempDir()).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
