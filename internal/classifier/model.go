// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package classifier

import (
	"fmt"
	"math"
)

// Model is a loaded Artifact. It is read-only and safe for concurrent use.
type Model struct {
	a Artifact
}

// NewModel validates an artifact.
func NewModel(a Artifact) (*Model, error) {
	if a.Dim <= 0 {
		return nil, fmt.Errorf("classifier: dim must be positive, got %d", a.Dim)
	}
	if len(a.Classes) < 2 {
		return nil, fmt.Errorf("classifier: need at least 2 classes, got %d", len(a.Classes))
	}
	if s := a.Scaler; s != nil {
		if len(s.Mean) != a.Dim || len(s.Scale) != a.Dim {
			return nil, fmt.Errorf("classifier: scaler size %d/%d, want %d", len(s.Mean), len(s.Scale), a.Dim)
		}
		for i, v := range s.Scale {
			if v == 0 {
				return nil, fmt.Errorf("classifier: scaler scale[%d] is zero", i)
			}
		}
	}

	switch a.Kind {
	case KindLinearOVO:
		if len(a.Pairs) == 0 {
			return nil, fmt.Errorf("classifier: linear_ovo model has no pairs")
		}
		for n, p := range a.Pairs {
			if p.I < 0 || p.J < 0 || p.I >= len(a.Classes) || p.J >= len(a.Classes) || p.I == p.J {
				return nil, fmt.Errorf("classifier: pair %d has invalid classes (%d, %d)", n, p.I, p.J)
			}
			if len(p.Weights) != a.Dim {
				return nil, fmt.Errorf("classifier: pair %d has %d weights, want %d", n, len(p.Weights), a.Dim)
			}
		}
	case KindNearestCentroid:
		if len(a.Centroids) != len(a.Classes) {
			return nil, fmt.Errorf("classifier: %d centroids for %d classes", len(a.Centroids), len(a.Classes))
		}
		for n, c := range a.Centroids {
			if len(c) != a.Dim {
				return nil, fmt.Errorf("classifier: centroid %d has %d values, want %d", n, len(c), a.Dim)
			}
		}
	default:
		return nil, fmt.Errorf("classifier: unknown model kind %q", a.Kind)
	}
	return &Model{a: a}, nil
}

// Dim is the expected feature vector length.
func (m *Model) Dim() int { return m.a.Dim }

// Classes lists the labels the model can produce.
func (m *Model) Classes() []string { return append([]string(nil), m.a.Classes...) }

// Kind reports the model family.
func (m *Model) Kind() string { return m.a.Kind }

// CheckDim verifies that an extractor producing n features can feed the model.
func (m *Model) CheckDim(n int) error {
	if n != m.a.Dim {
		return fmt.Errorf("%w: extractor produces %d, model expects %d", ErrDimension, n, m.a.Dim)
	}
	return nil
}

// Predict returns the label for vec.
func (m *Model) Predict(vec []float64) (string, error) {
	if len(vec) != m.a.Dim {
		return "", fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), m.a.Dim)
	}
	x := vec
	if s := m.a.Scaler; s != nil {
		x = make([]float64, len(vec))
		for i, v := range vec {
			x[i] = (v - s.Mean[i]) / s.Scale[i]
		}
	}

	var idx int
	switch m.a.Kind {
	case KindLinearOVO:
		idx = m.vote(x)
	case KindNearestCentroid:
		idx = m.nearest(x)
	}
	return m.a.Classes[idx], nil
}

// vote runs every pairwise decision; ties go to the lower class index.
func (m *Model) vote(x []float64) int {
	votes := make([]int, len(m.a.Classes))
	for _, p := range m.a.Pairs {
		if dot(p.Weights, x)+p.Intercept > 0 {
			votes[p.I]++
		} else {
			votes[p.J]++
		}
	}
	best := 0
	for i, v := range votes {
		if v > votes[best] {
			best = i
		}
	}
	return best
}

func (m *Model) nearest(x []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range m.a.Centroids {
		var d float64
		for j := range c {
			diff := x[j] - c[j]
			d += diff * diff
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

var _ Classifier = (*Model)(nil)
