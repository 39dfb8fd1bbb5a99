// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/gesture"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader("# only comments\n\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.Ports(); len(got) != 3 || got[0] != 8080 || got[1] != 8081 || got[2] != 8082 {
		t.Errorf("Ports() = %v", got)
	}
	if cfg.Shape().Rows != 400 || cfg.Shape().Channels != 8 {
		t.Errorf("Shape() = %+v", cfg.Shape())
	}
	if cfg.PollInterval() != time.Second {
		t.Errorf("PollInterval() = %v", cfg.PollInterval())
	}
	if cfg.Session().SessionName() != "user0_default" {
		t.Errorf("Session() = %q", cfg.Session().SessionName())
	}
}

func TestParseValues(t *testing.T) {
	input := `
LISTEN_PORT=9000
LISTEN_PORT_FALLBACKS= 9001 , 9002,
SAMPLE_RATE_HZ=200
WINDOW_SAMPLES=200
BAND_MAX_HZ=100
GESTURE_LEFT_LABELS=pinchL,swipeL
GESTURE_RIGHT_LABELS=pinchR
PARTICIPANT_ID=12
CONDITION=seated
LOG_LEVEL=DEBUG
MQTT_BROKER=tcp://localhost:1883
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.Ports(); len(got) != 3 || got[0] != 9000 || got[2] != 9002 {
		t.Errorf("Ports() = %v", got)
	}
	fc := cfg.Features()
	if fc.SampleRate != 200 || fc.WindowLen != 200 || fc.BandMax != 100 {
		t.Errorf("Features() = %+v", fc)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v", cfg.SlogLevel())
	}
	if cfg.Session().SessionName() != "user12_seated" {
		t.Errorf("Session() = %q", cfg.Session().SessionName())
	}

	m, err := cfg.Mapper()
	if err != nil {
		t.Fatalf("Mapper: %v", err)
	}
	if m.Map("swipeL") != gesture.Left || m.Map("pinchR") != gesture.Right {
		t.Errorf("mapper = %v", m)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unknown key", "FOO=1", "unknown config key"},
		{"no equals", "LISTEN_PORT", "invalid config line 1"},
		{"bad int", "LISTEN_PORT=http", "invalid LISTEN_PORT"},
		{"bad fallback", "LISTEN_PORT_FALLBACKS=8081,x", "invalid LISTEN_PORT_FALLBACKS"},
		{"port range", "LISTEN_PORT=70000", "out of range"},
		{"channels", "CHANNELS=6", "CHANNELS must be 8"},
		{"band", "BAND_MIN_HZ=50\nBAND_MAX_HZ=10", "invalid band"},
		{"no model", "MODEL_PATH=", "MODEL_PATH is required"},
		{"no labels", "GESTURE_LEFT_LABELS=\nGESTURE_RIGHT_LABELS=", "GESTURE_LEFT_LABELS"},
		{"level", "LOG_LEVEL=loud", "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadMapFileOverride(t *testing.T) {
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "gestures.toml")
	if err := os.WriteFile(mapPath, []byte("[gestures]\nleft = [\"tapL\"]\nright = [\"tapR\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "gesture_config.txt")
	if err := os.WriteFile(cfgPath, []byte("GESTURE_MAP_FILE="+mapPath+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, err := cfg.Mapper()
	if err != nil {
		t.Fatalf("Mapper: %v", err)
	}
	if m.Map("tapL") != gesture.Left || m.Map("pinchL") != gesture.None {
		t.Errorf("mapper = %v", m)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error")
	}
}
