// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sink defines the persistence collaborator of the gesture
// pipeline: validated windows and structured events go in, storage format is
// up to the implementation.
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/imu"
)

// EventKind classifies an event record.
type EventKind string

const (
	KindConnected       EventKind = "connected"
	KindDisconnected    EventKind = "disconnected"
	KindPrediction      EventKind = "prediction"
	KindAction          EventKind = "action"
	KindFrameRejected   EventKind = "frame_rejected"
	KindClassifierError EventKind = "classifier_error"
)

// Event is one structured diagnostic or result record.
type Event struct {
	Time     time.Time `json:"timestamp"`
	Kind     EventKind `json:"event_type"`
	Session  string    `json:"session"`
	Peer     string    `json:"peer,omitempty"`
	ConnID   int       `json:"conn_id"`
	WindowID int       `json:"window_id,omitempty"`
	Label    string    `json:"label,omitempty"`
	Action   string    `json:"action,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// WindowRecord is a validated window tagged with its per-connection counter.
type WindowRecord struct {
	Session  string
	Peer     string
	ConnID   int
	WindowID int
	Received time.Time
	Window   imu.Window
}

// Sink receives windows and events. Implementations must be safe for
// concurrent use.
type Sink interface {
	SaveWindow(ctx context.Context, rec WindowRecord) error
	RecordEvent(ctx context.Context, ev Event) error
	Close() error
}

// Multi fans every call out to all sinks and joins their errors.
type Multi []Sink

func (m Multi) SaveWindow(ctx context.Context, rec WindowRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.SaveWindow(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RecordEvent(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards everything.
type Nop struct{}

func (Nop) SaveWindow(context.Context, WindowRecord) error { return nil }
func (Nop) RecordEvent(context.Context, Event) error       { return nil }
func (Nop) Close() error                                   { return nil }

var (
	_ Sink = Multi(nil)
	_ Sink = Nop{}
)
