// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package features turns a sensor window into the band limited log
// magnitude spectrum the gesture model was trained on.
package features

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/relabs-tech/gesture_computer/internal/imu"
)

// ErrWindowLength is returned when a window does not have WindowLen samples.
var ErrWindowLength = errors.New("window length mismatch")

// Config fixes the spectral geometry. The sampling rate is the nominal device
// rate; timestamps in the data are never used to re-estimate it.
type Config struct {
	SampleRate float64 // fs, Hz
	WindowLen  int     // N, samples per channel
	BandMin    float64 // inclusive, Hz
	BandMax    float64 // inclusive, Hz
}

// DefaultConfig matches the deployed watch firmware: 400 Hz, 400 samples, 1-200 Hz.
func DefaultConfig() Config {
	return Config{SampleRate: 400, WindowLen: 400, BandMin: 1, BandMax: 200}
}

// Extractor is stateless after construction and safe for concurrent use.
type Extractor struct {
	cfg  Config
	bins []int // one-sided FFT bins inside the band
}

// New precomputes the kept frequency bins.
func New(cfg Config) (*Extractor, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("features: sample rate must be positive, got %v", cfg.SampleRate)
	}
	if cfg.WindowLen < 2 {
		return nil, fmt.Errorf("features: window length must be >= 2, got %d", cfg.WindowLen)
	}
	if cfg.BandMax < cfg.BandMin {
		return nil, fmt.Errorf("features: empty band [%v, %v]", cfg.BandMin, cfg.BandMax)
	}

	var bins []int
	for k, f := range Frequencies(cfg.WindowLen, cfg.SampleRate) {
		if f >= cfg.BandMin && f <= cfg.BandMax {
			bins = append(bins, k)
		}
	}
	if len(bins) == 0 {
		return nil, fmt.Errorf("features: no FFT bin falls in [%v, %v] Hz", cfg.BandMin, cfg.BandMax)
	}
	return &Extractor{cfg: cfg, bins: bins}, nil
}

// Frequencies returns the one-sided frequency axis for n samples at fs,
// bin k at k / (n * (1/fs)) for k = 0..n/2.
func Frequencies(n int, fs float64) []float64 {
	d := 1 / fs
	val := 1 / (float64(n) * d)
	out := make([]float64, n/2+1)
	for k := range out {
		out[k] = float64(k) * val
	}
	return out
}

// Len is the feature vector length for every valid window.
func (e *Extractor) Len() int { return len(e.bins) * len(imu.MotionChannels) }

// Bins returns the number of kept frequency bins per channel.
func (e *Extractor) Bins() int { return len(e.bins) }

// Config returns the geometry the extractor was built with.
func (e *Extractor) Config() Config { return e.cfg }

// Extract concatenates log(1+|X[k]|) over the kept bins for ax, ay, az, gx, gy, gz.
func (e *Extractor) Extract(w imu.Window) ([]float64, error) {
	if w.Len() != e.cfg.WindowLen {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrWindowLength, w.Len(), e.cfg.WindowLen)
	}

	out := make([]float64, 0, e.Len())
	for _, ch := range imu.MotionChannels {
		spectrum := fft.FFTReal(w.Column(ch))
		for _, k := range e.bins {
			out = append(out, math.Log1p(cmplx.Abs(spectrum[k])))
		}
	}
	return out, nil
}
