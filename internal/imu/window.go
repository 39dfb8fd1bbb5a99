// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrShape is returned when a frame does not have exactly Rows x Channels fields.
	ErrShape = errors.New("window shape mismatch")
	// ErrParse is returned when a field is not a decimal number.
	ErrParse = errors.New("window field not numeric")
)

// Shape is the fixed geometry shared out-of-band with the device firmware.
type Shape struct {
	Rows     int // samples per window (N)
	Channels int // fields per row
}

// Window is a validated Rows x Channels sensor matrix.
type Window struct {
	// Fields keeps the row text exactly as received, for persistence.
	Fields  [][]string
	Samples []Sample
}

// Len returns the number of samples.
func (w Window) Len() int { return len(w.Samples) }

// Column copies one motion axis into a fresh slice.
func (w Window) Column(c MotionChannel) []float64 {
	out := make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		out[i] = s.motion(c)
	}
	return out
}

// Text renders the window as frame body text, one newline terminated row
// per sample.
func (w Window) Text() string {
	var b strings.Builder
	for _, row := range w.Fields {
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseWindow validates a frame body and converts it into a Window.
// The whole frame is rejected on the first bad row or field; nothing
// is partially returned.
func ParseWindow(text string, shape Shape) (Window, error) {
	if shape.Channels != WireChannels {
		return Window{}, fmt.Errorf("%w: unsupported channel count %d", ErrShape, shape.Channels)
	}

	rows := strings.Split(strings.TrimSpace(text), "\n")
	if len(rows) != shape.Rows {
		return Window{}, fmt.Errorf("%w: got %d rows, want %d", ErrShape, len(rows), shape.Rows)
	}

	w := Window{
		Fields:  make([][]string, len(rows)),
		Samples: make([]Sample, len(rows)),
	}
	vals := make([]float64, shape.Channels)

	for i, row := range rows {
		fields := strings.Split(strings.TrimRight(row, "\r"), ",")
		if len(fields) != shape.Channels {
			return Window{}, fmt.Errorf("%w: row %d has %d fields, want %d", ErrShape, i+1, len(fields), shape.Channels)
		}
		for j, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return Window{}, fmt.Errorf("%w: row %d field %d %q", ErrParse, i+1, j+1, f)
			}
			vals[j] = v
		}
		w.Fields[i] = fields
		w.Samples[i] = sampleFromFields(vals)
	}
	return w, nil
}

// NewWindow builds a Window from numeric rows, formatting the text fields
// the way the firmware would. Rows must have WireChannels values.
func NewWindow(rows [][]float64) (Window, error) {
	w := Window{
		Fields:  make([][]string, len(rows)),
		Samples: make([]Sample, len(rows)),
	}
	for i, r := range rows {
		if len(r) != WireChannels {
			return Window{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i+1, len(r), WireChannels)
		}
		fields := make([]string, len(r))
		for j, v := range r {
			fields[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		w.Fields[i] = fields
		w.Samples[i] = sampleFromFields(r)
	}
	return w, nil
}
