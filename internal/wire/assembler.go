// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wire reassembles [START]...[END] delimited sensor frames from a
// raw device byte stream.
//
// The assembler is a two state machine. While seeking a start marker every
// byte is garbage, including stray end markers. While seeking an end marker a
// fresh start marker abandons the partial frame and restarts at the newer
// marker, so the stream always resynchronizes to the latest [START].
package wire

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	StartMarker = []byte("[START]\n")
	EndMarker   = []byte("[END]\n")
)

// DefaultMaxBuffer bounds the bytes retained between frames.
const DefaultMaxBuffer = 1 << 20

// ErrBufferOverflow means the peer sent more than the allowed bytes without
// completing a frame. The connection should be dropped.
var ErrBufferOverflow = errors.New("frame buffer overflow")

// Frame is the text between a start and an end marker.
type Frame struct {
	Body string
}

type state int

const (
	seekStart state = iota
	seekEnd
)

// Assembler accumulates bytes and extracts complete frames. It is owned by a
// single connection and is not safe for concurrent use.
type Assembler struct {
	buf   []byte
	state state
	// scan is where the next marker search resumes inside buf so that
	// large partial frames are not rescanned on every Feed.
	scan int
	max  int

	resyncs   int
	discarded int
}

// NewAssembler returns an Assembler that retains at most maxBuffer bytes of
// incomplete data. maxBuffer <= 0 selects DefaultMaxBuffer.
func NewAssembler(maxBuffer int) *Assembler {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Assembler{max: maxBuffer}
}

// Feed appends data and returns every frame completed by it, in stream order.
// Trailing partial data is kept for the next call. The only error is
// ErrBufferOverflow, returned together with the frames that did complete.
func (a *Assembler) Feed(data []byte) ([]Frame, error) {
	a.buf = append(a.buf, data...)

	var frames []Frame
	start := 0 // consumed prefix of buf

	for {
		rest := a.buf[start:]
		if a.state == seekStart {
			idx := bytes.Index(rest[a.scan:], StartMarker)
			if idx < 0 {
				// keep a possible marker prefix at the tail
				keep := min(len(rest), len(StartMarker)-1)
				a.discarded += len(rest) - keep
				start += len(rest) - keep
				a.scan = 0
				break
			}
			skip := a.scan + idx
			a.discarded += skip
			start += skip + len(StartMarker)
			a.state = seekEnd
			a.scan = 0
			continue
		}

		region := rest[a.scan:]
		e := bytes.Index(region, EndMarker)
		s := bytes.Index(region, StartMarker)
		if s >= 0 && (e < 0 || s < e) {
			a.resyncs++
			a.discarded += a.scan + s
			start += a.scan + s + len(StartMarker)
			a.scan = 0
			continue
		}
		if e < 0 {
			a.scan = max(0, len(rest)-(len(StartMarker)-1))
			break
		}
		end := a.scan + e
		frames = append(frames, Frame{Body: string(rest[:end])})
		start += end + len(EndMarker)
		a.state = seekStart
		a.scan = 0
	}

	n := copy(a.buf, a.buf[start:])
	a.buf = a.buf[:n]

	if len(a.buf) > a.max {
		return frames, fmt.Errorf("%w: %d bytes pending, limit %d", ErrBufferOverflow, len(a.buf), a.max)
	}
	return frames, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (a *Assembler) Buffered() int { return len(a.buf) }

// Resyncs counts partial frames abandoned because a newer start marker arrived.
func (a *Assembler) Resyncs() int { return a.resyncs }

// Discarded counts bytes dropped outside any frame.
func (a *Assembler) Discarded() int { return a.discarded }

// Reset drops all buffered data.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.state = seekStart
	a.scan = 0
}

// AppendFrame wraps body in start and end markers. body must end with a
// newline so the end marker starts its own line.
func AppendFrame(dst []byte, body string) []byte {
	dst = append(dst, StartMarker...)
	dst = append(dst, body...)
	return append(dst, EndMarker...)
}
