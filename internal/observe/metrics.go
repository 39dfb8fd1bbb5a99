// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package observe provides the OpenTelemetry metrics of the gesture server.
//
// Instruments are created from an injected [metric.MeterProvider]; tests use
// a ManualReader backed provider, production uses [InitProvider] which
// bridges to Prometheus so /metrics can be scraped.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/relabs-tech/gesture_computer"

// Metrics holds every instrument. All fields are safe for concurrent use.
type Metrics struct {
	// FramesReceived counts delimited frames pulled off a connection.
	FramesReceived metric.Int64Counter

	// FramesRejected counts frames failing validation. Attribute: reason.
	FramesRejected metric.Int64Counter

	// Predictions counts classifier outputs. Attribute: label.
	Predictions metric.Int64Counter

	// Actions counts actions forwarded to the consumer. Attribute: action.
	Actions metric.Int64Counter

	// ClassifierErrors counts windows skipped due to extraction or prediction failure.
	ClassifierErrors metric.Int64Counter

	// SinkErrors counts persistence failures.
	SinkErrors metric.Int64Counter

	// Connections counts inbound device connections. Attribute: status (accepted, refused).
	Connections metric.Int64Counter

	// ActiveConnections is 1 while a device is connected.
	ActiveConnections metric.Int64UpDownCounter

	// WindowDuration is the time from frame completion to action dispatch.
	WindowDuration metric.Float64Histogram
}

// window processing must stay well under the 1 s window interval
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesReceived, err = m.Int64Counter("gesture.frames.received",
		metric.WithDescription("Frames extracted from the device stream."),
	); err != nil {
		return nil, err
	}
	if met.FramesRejected, err = m.Int64Counter("gesture.frames.rejected",
		metric.WithDescription("Frames rejected by window validation, by reason."),
	); err != nil {
		return nil, err
	}
	if met.Predictions, err = m.Int64Counter("gesture.predictions",
		metric.WithDescription("Classifier predictions by label."),
	); err != nil {
		return nil, err
	}
	if met.Actions, err = m.Int64Counter("gesture.actions",
		metric.WithDescription("Actions forwarded to the consumer by action."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierErrors, err = m.Int64Counter("gesture.classifier.errors",
		metric.WithDescription("Windows skipped because feature extraction or prediction failed."),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("gesture.sink.errors",
		metric.WithDescription("Persistence sink failures."),
	); err != nil {
		return nil, err
	}
	if met.Connections, err = m.Int64Counter("gesture.connections",
		metric.WithDescription("Inbound device connections by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConnections, err = m.Int64UpDownCounter("gesture.active_connections",
		metric.WithDescription("Number of connected devices."),
	); err != nil {
		return nil, err
	}
	if met.WindowDuration, err = m.Float64Histogram("gesture.window.duration",
		metric.WithDescription("Latency of validating, classifying and dispatching one window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns metrics bound to the global meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Discard returns metrics that record nothing.
func Discard() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// RecordRejected counts a rejected frame.
func (m *Metrics) RecordRejected(ctx context.Context, reason string) {
	m.FramesRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordPrediction counts a classifier output.
func (m *Metrics) RecordPrediction(ctx context.Context, label string) {
	m.Predictions.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

// RecordAction counts a forwarded action.
func (m *Metrics) RecordAction(ctx context.Context, action string) {
	m.Actions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// RecordConnection counts an accepted or refused connection.
func (m *Metrics) RecordConnection(ctx context.Context, status string) {
	m.Connections.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
