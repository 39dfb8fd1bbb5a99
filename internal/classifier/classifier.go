// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package classifier adapts a pre-trained gesture model to a narrow
// Predict interface. Models are loaded once at startup; a load failure is
// fatal to the caller, a prediction failure only skips one window.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrDimension is returned when a feature vector does not match the model input size.
var ErrDimension = errors.New("feature dimension mismatch")

// Classifier maps a feature vector to a gesture label.
type Classifier interface {
	Predict(vec []float64) (string, error)
}

// Func adapts a plain function to Classifier.
type Func func(vec []float64) (string, error)

// Predict calls f.
func (f Func) Predict(vec []float64) (string, error) { return f(vec) }

// Model kinds understood by Load.
const (
	KindLinearOVO       = "linear_ovo"
	KindNearestCentroid = "nearest_centroid"
)

// Artifact is the on-disk model description, exported from the training
// scripts as YAML or JSON.
type Artifact struct {
	Kind    string   `yaml:"kind" json:"kind"`
	Dim     int      `yaml:"dim" json:"dim"`
	Classes []string `yaml:"classes" json:"classes"`

	// Optional standardization applied before scoring: (x - mean) / scale.
	Scaler *Scaler `yaml:"scaler,omitempty" json:"scaler,omitempty"`

	// linear_ovo: one hyperplane per class pair (i < j). A positive
	// decision votes for Classes[I], otherwise for Classes[J].
	Pairs []Pair `yaml:"pairs,omitempty" json:"pairs,omitempty"`

	// nearest_centroid: one centroid per entry in Classes, same order.
	Centroids [][]float64 `yaml:"centroids,omitempty" json:"centroids,omitempty"`
}

// Scaler standardizes features.
type Scaler struct {
	Mean  []float64 `yaml:"mean" json:"mean"`
	Scale []float64 `yaml:"scale" json:"scale"`
}

// Pair is one binary linear decision function.
type Pair struct {
	I         int       `yaml:"i" json:"i"`
	J         int       `yaml:"j" json:"j"`
	Weights   []float64 `yaml:"weights" json:"weights"`
	Intercept float64   `yaml:"intercept" json:"intercept"`
}

// Load reads a model artifact. The format follows the file extension:
// .yaml/.yml or .json.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: read model: %w", err)
	}

	var a Artifact
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("classifier: decode %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("classifier: decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("classifier: unsupported model format %q", ext)
	}
	return NewModel(a)
}
