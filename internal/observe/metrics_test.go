// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func findSum(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name == name {
				sum, ok := met.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("metric %q is not an int64 sum", name)
				}
				return sum
			}
		}
	}
	t.Fatalf("metric %q not found", name)
	return metricdata.Sum[int64]{}
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAction(ctx, "LEFT")
	m.RecordAction(ctx, "LEFT")
	m.RecordAction(ctx, "RIGHT")
	m.RecordRejected(ctx, "shape")
	m.RecordPrediction(ctx, "pinchL")
	m.RecordConnection(ctx, "refused")

	sum := findSum(t, reader, "gesture.actions")
	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("action"))
		counts[v.AsString()] = dp.Value
	}
	if counts["LEFT"] != 2 || counts["RIGHT"] != 1 {
		t.Errorf("action counts = %v", counts)
	}

	for _, name := range []string{"gesture.frames.rejected", "gesture.predictions", "gesture.connections"} {
		sum := findSum(t, reader, name)
		if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
			t.Errorf("%s data points = %+v", name, sum.DataPoints)
		}
	}
}

func TestDiscard(t *testing.T) {
	m := Discard()
	m.RecordAction(context.Background(), "LEFT")
	m.WindowDuration.Record(context.Background(), 0.01)
}
