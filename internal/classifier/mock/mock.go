// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mock provides a test double for classifier.Classifier.
//
// Set Label/Err for a fixed answer, or Labels to answer in sequence.
// Every input vector is recorded in PredictCalls.
package mock

import (
	"sync"

	"github.com/relabs-tech/gesture_computer/internal/classifier"
)

// PredictCall records a single invocation of Classifier.Predict.
type PredictCall struct {
	// Vec is a copy of the vector passed to Predict.
	Vec []float64
}

// Classifier is a mock implementation of classifier.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Label is returned when Labels is exhausted or empty.
	Label string

	// Labels are returned one per call, in order.
	Labels []string

	// Err, if non-nil, is returned from every call.
	Err error

	// PredictCalls records every call in order.
	PredictCalls []PredictCall
}

// Predict records the call and returns the next configured answer.
func (c *Classifier) Predict(vec []float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PredictCalls = append(c.PredictCalls, PredictCall{Vec: append([]float64(nil), vec...)})
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.Labels) > 0 {
		l := c.Labels[0]
		c.Labels = c.Labels[1:]
		return l, nil
	}
	return c.Label, nil
}

// Calls returns a snapshot of recorded calls. Thread-safe.
func (c *Classifier) Calls() []PredictCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]PredictCall(nil), c.PredictCalls...)
}

// Ensure Classifier implements classifier.Classifier at compile time.
var _ classifier.Classifier = (*Classifier)(nil)
