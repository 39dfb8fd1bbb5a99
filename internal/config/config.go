// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/features"
	"github.com/relabs-tech/gesture_computer/internal/gesture"
	"github.com/relabs-tech/gesture_computer/internal/imu"
	"github.com/relabs-tech/gesture_computer/internal/session"
)

// DefaultPath is the config file looked up when no --config flag is given.
const DefaultPath = "gesture_config.txt"

// Config holds all application configuration values.
type Config struct {
	// Listener
	ListenHost          string
	ListenPort          int
	ListenPortFallbacks []int
	AdvertiseHost       string // "auto" resolves the outbound interface once at startup
	PollIntervalMS      int    // accept/read deadline
	ReadChunkBytes      int
	MaxBufferBytes      int

	// Model and features
	ModelPath     string
	SampleRateHz  float64
	WindowSamples int
	Channels      int
	BandMinHz     float64
	BandMaxHz     float64

	// Gestures
	GestureLeftLabels  []string
	GestureRightLabels []string
	GestureMapFile     string // optional TOML file, overrides the label lists
	ActionQueueSize    int

	// Session artifacts
	ParticipantID string
	Condition     string
	ResultsDir    string
	EventDBPath   string // empty disables the SQLite event store

	// MQTT (empty broker disables publishing)
	MQTTBroker   string
	MQTTClientID string
	TopicActions string
	TopicEvents  string
	TopicStatus  string

	// Web Server
	WebServerPort int

	// Serial ingest
	SerialPort     string
	SerialBaudRate int

	LogLevel string
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		ListenHost:          "0.0.0.0",
		ListenPort:          8080,
		ListenPortFallbacks: []int{8081, 8082},
		AdvertiseHost:       "auto",
		PollIntervalMS:      1000,
		ReadChunkBytes:      4096,
		MaxBufferBytes:      1 << 20,

		ModelPath:     "model/gesture_model.yaml",
		SampleRateHz:  400,
		WindowSamples: 400,
		Channels:      imu.WireChannels,
		BandMinHz:     1,
		BandMaxHz:     200,

		GestureLeftLabels:  []string{"pinchL"},
		GestureRightLabels: []string{"pinchR"},
		ActionQueueSize:    session.DefaultQueueSize,

		ParticipantID: "0",
		Condition:     "default",
		ResultsDir:    "experiment_results",

		MQTTClientID: "gesture-server",
		TopicActions: "gesture/actions",
		TopicEvents:  "gesture/events",
		TopicStatus:  "gesture/status",

		WebServerPort:  8090,
		SerialBaudRate: 115200,
		LogLevel:       "info",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Listener
	case "LISTEN_HOST":
		c.ListenHost = value
	case "LISTEN_PORT":
		c.ListenPort, err = atoi(key, value)
	case "LISTEN_PORT_FALLBACKS":
		c.ListenPortFallbacks, err = intList(key, value)
	case "ADVERTISE_HOST":
		c.AdvertiseHost = value
	case "POLL_INTERVAL_MS":
		c.PollIntervalMS, err = atoi(key, value)
	case "READ_CHUNK_BYTES":
		c.ReadChunkBytes, err = atoi(key, value)
	case "MAX_BUFFER_BYTES":
		c.MaxBufferBytes, err = atoi(key, value)

	// Model and features
	case "MODEL_PATH":
		c.ModelPath = value
	case "SAMPLE_RATE_HZ":
		c.SampleRateHz, err = atof(key, value)
	case "WINDOW_SAMPLES":
		c.WindowSamples, err = atoi(key, value)
	case "CHANNELS":
		c.Channels, err = atoi(key, value)
	case "BAND_MIN_HZ":
		c.BandMinHz, err = atof(key, value)
	case "BAND_MAX_HZ":
		c.BandMaxHz, err = atof(key, value)

	// Gestures
	case "GESTURE_LEFT_LABELS":
		c.GestureLeftLabels = stringList(value)
	case "GESTURE_RIGHT_LABELS":
		c.GestureRightLabels = stringList(value)
	case "GESTURE_MAP_FILE":
		c.GestureMapFile = value
	case "ACTION_QUEUE_SIZE":
		c.ActionQueueSize, err = atoi(key, value)

	// Session artifacts
	case "PARTICIPANT_ID":
		c.ParticipantID = value
	case "CONDITION":
		c.Condition = value
	case "RESULTS_DIR":
		c.ResultsDir = value
	case "EVENT_DB_PATH":
		c.EventDBPath = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_ACTIONS":
		c.TopicActions = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_STATUS":
		c.TopicStatus = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = atoi(key, value)

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = atoi(key, value)

	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

func atoi(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func atof(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return f, nil
}

func intList(key, value string) ([]int, error) {
	var out []int
	for _, s := range stringList(value) {
		n, err := atoi(key, s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// stringList splits a comma separated value, dropping empty items.
func stringList(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	for _, p := range c.Ports() {
		if p < 1 || p > 65535 {
			return fmt.Errorf("listen port %d out of range 1-65535", p)
		}
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive, got %d", c.PollIntervalMS)
	}
	if c.ReadChunkBytes <= 0 {
		return fmt.Errorf("READ_CHUNK_BYTES must be positive, got %d", c.ReadChunkBytes)
	}
	if c.MaxBufferBytes <= 0 {
		return fmt.Errorf("MAX_BUFFER_BYTES must be positive, got %d", c.MaxBufferBytes)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	if c.Channels != imu.WireChannels {
		return fmt.Errorf("CHANNELS must be %d, got %d", imu.WireChannels, c.Channels)
	}
	if c.WindowSamples < 2 {
		return fmt.Errorf("WINDOW_SAMPLES must be at least 2, got %d", c.WindowSamples)
	}
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("SAMPLE_RATE_HZ must be positive, got %v", c.SampleRateHz)
	}
	if c.BandMinHz < 0 || c.BandMaxHz < c.BandMinHz {
		return fmt.Errorf("invalid band [%v, %v] Hz", c.BandMinHz, c.BandMaxHz)
	}
	if c.GestureMapFile == "" && len(c.GestureLeftLabels)+len(c.GestureRightLabels) == 0 {
		return fmt.Errorf("GESTURE_LEFT_LABELS or GESTURE_RIGHT_LABELS is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Ports returns the primary listen port followed by the fallbacks.
func (c *Config) Ports() []int {
	return append([]int{c.ListenPort}, c.ListenPortFallbacks...)
}

// PollInterval is the accept and read deadline of the connection manager.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Shape is the expected window shape.
func (c *Config) Shape() imu.Shape {
	return imu.Shape{Rows: c.WindowSamples, Channels: c.Channels}
}

// Features returns the extractor configuration.
func (c *Config) Features() features.Config {
	return features.Config{
		SampleRate: c.SampleRateHz,
		WindowLen:  c.WindowSamples,
		BandMin:    c.BandMinHz,
		BandMax:    c.BandMaxHz,
	}
}

// Mapper builds the gesture mapper, preferring GESTURE_MAP_FILE when set.
func (c *Config) Mapper() (*gesture.Mapper, error) {
	if c.GestureMapFile != "" {
		return gesture.LoadMapFile(c.GestureMapFile)
	}
	return gesture.NewMapper(c.GestureLeftLabels, c.GestureRightLabels)
}

// Session names the artifacts of this run.
func (c *Config) Session() session.StaticNamer {
	return session.ExperimentName(c.ParticipantID, c.Condition)
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
	}
}
