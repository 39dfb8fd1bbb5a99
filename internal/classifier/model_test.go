// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package classifier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const ovoYAML = `
kind: linear_ovo
dim: 2
classes: [pinchL, pinchR, rest]
pairs:
  - {i: 0, j: 1, weights: [-1, -1], intercept: 0}
  - {i: 0, j: 2, weights: [-1, 0], intercept: 0.5}
  - {i: 1, j: 2, weights: [0, 1], intercept: -0.5}
`

func TestLoad_LinearOVOYAML(t *testing.T) {
	m, err := Load(writeFile(t, "svm.yaml", ovoYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Dim() != 2 || m.Kind() != KindLinearOVO {
		t.Fatalf("Dim=%d Kind=%q", m.Dim(), m.Kind())
	}

	tests := []struct {
		vec  []float64
		want string
	}{
		{[]float64{-2, 0}, "pinchL"},
		{[]float64{0, 2}, "pinchR"},
		{[]float64{2, 0}, "rest"},
	}
	for _, tc := range tests {
		got, err := m.Predict(tc.vec)
		if err != nil {
			t.Fatalf("Predict(%v): %v", tc.vec, err)
		}
		if got != tc.want {
			t.Errorf("Predict(%v) = %q, want %q", tc.vec, got, tc.want)
		}
	}
}

func TestLoad_NearestCentroidJSON(t *testing.T) {
	path := writeFile(t, "centroid.json", `{
		"kind": "nearest_centroid",
		"dim": 2,
		"classes": ["pinchL", "pinchR"],
		"scaler": {"mean": [1, 1], "scale": [2, 2]},
		"centroids": [[-1, 0], [1, 0]]
	}`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// (5-1)/2 = 2 -> closer to +1
	got, err := m.Predict([]float64{5, 1})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != "pinchR" {
		t.Errorf("Predict = %q, want pinchR", got)
	}
}

func TestPredict_DimensionMismatch(t *testing.T) {
	m, err := Load(writeFile(t, "svm.yml", ovoYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := m.Predict([]float64{1, 2, 3}); !errors.Is(err, ErrDimension) {
		t.Fatalf("err = %v, want ErrDimension", err)
	}
	if err := m.CheckDim(1200); !errors.Is(err, ErrDimension) {
		t.Fatalf("CheckDim err = %v, want ErrDimension", err)
	}
	if err := m.CheckDim(2); err != nil {
		t.Fatalf("CheckDim(2) = %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"unsupported extension", "model.pkl", "x"},
		{"corrupt yaml", "model.yaml", "kind: [unterminated"},
		{"corrupt json", "model.json", "{"},
		{"unknown kind", "model.yaml", "kind: forest\ndim: 1\nclasses: [a, b]"},
		{"one class", "model.yaml", "kind: nearest_centroid\ndim: 1\nclasses: [a]\ncentroids: [[1]]"},
		{"weight size", "model.yaml", "kind: linear_ovo\ndim: 2\nclasses: [a, b]\npairs: [{i: 0, j: 1, weights: [1]}]"},
		{"bad pair index", "model.yaml", "kind: linear_ovo\ndim: 1\nclasses: [a, b]\npairs: [{i: 0, j: 5, weights: [1]}]"},
		{"centroid count", "model.yaml", "kind: nearest_centroid\ndim: 1\nclasses: [a, b]\ncentroids: [[1]]"},
		{"zero scale", "model.yaml", "kind: nearest_centroid\ndim: 1\nclasses: [a, b]\ncentroids: [[1], [2]]\nscaler: {mean: [0], scale: [0]}"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, tc.file, tc.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want os.ErrNotExist", err)
	}
}

func TestFunc(t *testing.T) {
	var c Classifier = Func(func(vec []float64) (string, error) { return "pinchL", nil })
	if got, _ := c.Predict(nil); got != "pinchL" {
		t.Errorf("Predict = %q", got)
	}
}
