// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/classifier"
	"github.com/relabs-tech/gesture_computer/internal/config"
	"github.com/relabs-tech/gesture_computer/internal/features"
	"github.com/relabs-tech/gesture_computer/internal/gesture"
	"github.com/relabs-tech/gesture_computer/internal/imu"
	"github.com/relabs-tech/gesture_computer/internal/observe"
	"github.com/relabs-tech/gesture_computer/internal/server"
	"github.com/relabs-tech/gesture_computer/internal/sink"
	"github.com/relabs-tech/gesture_computer/internal/sink/sqlitesink"
)

const testRow = "0,1,2,3,0,4,5,6"

func frame(rows int) string {
	return "[START]\n" + strings.Repeat(testRow+"\n", rows) + "[END]\n"
}

// writeModel stores a nearest-centroid model whose "pinchL" centroid is
// exactly the feature vector of the constant test frame.
func writeModel(t *testing.T, dir string) string {
	t.Helper()
	ext, err := features.New(features.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	rows := make([][]float64, 400)
	for i := range rows {
		rows[i] = []float64{0, 1, 2, 3, 0, 4, 5, 6}
	}
	w, err := imu.NewWindow(rows)
	if err != nil {
		t.Fatal(err)
	}
	vec, err := ext.Extract(w)
	if err != nil {
		t.Fatal(err)
	}
	far := make([]float64, len(vec))
	for i, v := range vec {
		far[i] = v + 5
	}

	data, err := json.Marshal(classifier.Artifact{
		Kind:      classifier.KindNearestCentroid,
		Dim:       len(vec),
		Classes:   []string{"pinchL", "rest"},
		Centroids: [][]float64{vec, far},
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "model.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ModelPath = writeModel(t, dir)
	cfg.ResultsDir = filepath.Join(dir, "results")
	cfg.EventDBPath = filepath.Join(dir, "events.db")
	cfg.ListenHost = "127.0.0.1"
	cfg.ListenPort = 0
	cfg.ListenPortFallbacks = nil
	cfg.AdvertiseHost = "127.0.0.1"
	cfg.PollIntervalMS = 20
	cfg.ReadChunkBytes = 512
	cfg.ParticipantID = "4"
	cfg.Condition = "test"
	return cfg
}

func TestRunReplay(t *testing.T) {
	cfg := testConfig(t)
	capture := filepath.Join(t.TempDir(), "capture.txt")
	stream := "noise before\n" + frame(400) + frame(399) + "[END]\n" + frame(400) + "[START]\n0,1"
	if err := os.WriteFile(capture, []byte(stream), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	sum, err := RunReplay(context.Background(), cfg, capture, &out)
	if err != nil {
		t.Fatalf("RunReplay: %v", err)
	}
	if sum.Frames != 3 || sum.Rejected != 1 || sum.Forwarded != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sum.Actions) != 2 || sum.Actions[0].WindowID != 1 || sum.Actions[1].WindowID != 2 {
		t.Fatalf("actions = %+v", sum.Actions)
	}
	for _, a := range sum.Actions {
		if a.Action != gesture.Left || a.Label != "pinchL" {
			t.Errorf("action = %+v", a)
		}
	}
	if !strings.Contains(out.String(), "forwarded: 2") {
		t.Errorf("output = %q", out.String())
	}

	store, err := sqlitesink.Open(cfg.EventDBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	counts, err := store.CountByKind(context.Background(), "user4_test")
	if err != nil {
		t.Fatal(err)
	}
	got := map[sink.EventKind]int{}
	for _, kc := range counts {
		got[kc.Kind] = kc.Count
	}
	want := map[sink.EventKind]int{
		sink.KindConnected:     1,
		sink.KindDisconnected:  1,
		sink.KindFrameRejected: 1,
		sink.KindPrediction:    2,
		sink.KindAction:        2,
	}
	for k, n := range want {
		if got[k] != n {
			t.Errorf("%s events = %d, want %d (all: %v)", k, got[k], n, got)
		}
	}

	matches, _ := filepath.Glob(filepath.Join(cfg.ResultsDir, "user4_test_*", "event_log.json"))
	if len(matches) != 1 {
		t.Fatalf("event logs = %v", matches)
	}
}

func TestNewStackRejectsBadModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.WindowSamples = 200
	cfg.SampleRateHz = 200
	if _, err := newStack(cfg, slogDiscard(), observe.Discard()); err == nil {
		t.Fatal("expected dimension error")
	}

	cfg = testConfig(t)
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := newStack(cfg, slogDiscard(), observe.Discard()); err == nil {
		t.Fatal("expected load error")
	}
}

func TestServeEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventDBPath = ""
	st, err := newStack(cfg, slogDiscard(), observe.Discard())
	if err != nil {
		t.Fatalf("newStack: %v", err)
	}
	defer st.close()

	srv, err := st.newServer()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	payload := frame(400)
	// split mid-marker to exercise reassembly across reads
	if _, err := conn.Write([]byte(payload[:5])); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := conn.Write([]byte(payload[5:])); err != nil {
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

	conn.Close()
	for st.bridge.Status().Connected && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if st.bridge.Status().Connected {
		t.Fatal("bridge still connected after peer closed")
	}
	if s := srv.State(); s != server.Listening {
		t.Fatalf("state = %v", s)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
