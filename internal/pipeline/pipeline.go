// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline turns delimited frames into consumer actions.
//
// One frame flows validate → persist → extract → predict → map → enqueue,
// inline on the caller's goroutine. A Stream wraps the frame assembler and
// window counter of a single connection; nothing is shared between streams
// except the Pipeline's collaborators, which are all safe for concurrent use.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/classifier"
	"github.com/relabs-tech/gesture_computer/internal/features"
	"github.com/relabs-tech/gesture_computer/internal/gesture"
	"github.com/relabs-tech/gesture_computer/internal/imu"
	"github.com/relabs-tech/gesture_computer/internal/observe"
	"github.com/relabs-tech/gesture_computer/internal/session"
	"github.com/relabs-tech/gesture_computer/internal/sink"
	"github.com/relabs-tech/gesture_computer/internal/wire"
)

// Outcome is what happened to one frame.
type Outcome int

const (
	// Rejected frames failed shape or numeric validation.
	Rejected Outcome = iota
	// Failed windows validated but could not be classified.
	Failed
	// Ignored windows were classified to a label mapped to NONE.
	Ignored
	// Forwarded windows produced an action on the bridge.
	Forwarded
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	case Ignored:
		return "ignored"
	case Forwarded:
		return "forwarded"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result describes the processing of one frame.
type Result struct {
	Outcome  Outcome
	WindowID int // zero for rejected frames
	Label    string
	Action   gesture.Action
	Err      error
}

// Options wires a Pipeline. Classifier, Extractor, Mapper and Bridge are
// required; the rest default to no-ops.
type Options struct {
	Shape      imu.Shape
	Extractor  *features.Extractor
	Classifier classifier.Classifier
	Mapper     *gesture.Mapper
	Bridge     *session.Bridge

	Sink    sink.Sink
	Namer   session.Namer
	Metrics *observe.Metrics
	Logger  *slog.Logger

	// MaxBuffer bounds each stream's pending bytes. Zero means wire.DefaultMaxBuffer.
	MaxBuffer int

	now func() time.Time
}

// Pipeline is shared by every connection of a server.
type Pipeline struct {
	opts   Options
	log    *slog.Logger
	met    *observe.Metrics
	sink   sink.Sink
	nextID atomic.Int64
}

type dimChecker interface {
	CheckDim(n int) error
}

// New validates opts. A classifier exposing CheckDim must accept the
// extractor's vector length, so a mismatched model fails here and not per window.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case opts.Classifier == nil:
		return nil, errors.New("pipeline: classifier is required")
	case opts.Mapper == nil:
		return nil, errors.New("pipeline: mapper is required")
	case opts.Bridge == nil:
		return nil, errors.New("pipeline: bridge is required")
	}
	if opts.Shape.Rows != opts.Extractor.Config().WindowLen {
		return nil, fmt.Errorf("pipeline: window rows %d != extractor length %d",
			opts.Shape.Rows, opts.Extractor.Config().WindowLen)
	}
	if dc, ok := opts.Classifier.(dimChecker); ok {
		if err := dc.CheckDim(opts.Extractor.Len()); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	p := &Pipeline{opts: opts, log: opts.Logger, met: opts.Metrics, sink: opts.Sink}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.met == nil {
		p.met = observe.Discard()
	}
	if p.sink == nil {
		p.sink = sink.Nop{}
	}
	return p, nil
}

// Conn is the per-connection state a frame is processed against.
type Conn struct {
	ID      int
	Peer    string
	Session string

	windows int
}

// Windows returns how many windows validated on this connection.
func (c *Conn) Windows() int { return c.windows }

// Begin opens a stream for a newly accepted peer and records the
// connection event.
func (p *Pipeline) Begin(ctx context.Context, peer string) *Stream {
	conn := &Conn{
		ID:      int(p.nextID.Add(1)),
		Peer:    peer,
		Session: p.sessionName(),
	}
	p.met.ActiveConnections.Add(ctx, 1)
	p.record(ctx, conn, sink.Event{Kind: sink.KindConnected})
	p.log.Info("device connected", "conn", conn.ID, "peer", peer, "session", conn.Session)
	return &Stream{p: p, conn: conn, asm: wire.NewAssembler(p.opts.MaxBuffer)}
}

func (p *Pipeline) sessionName() string {
	if p.opts.Namer == nil {
		return ""
	}
	return p.opts.Namer.SessionName()
}

// HandleFrame processes one frame for conn. Every failure is contained in
// the returned Result; nothing here ends the connection.
func (p *Pipeline) HandleFrame(ctx context.Context, conn *Conn, frame wire.Frame) Result {
	start := p.opts.now()
	p.met.FramesReceived.Add(ctx, 1)

	w, err := imu.ParseWindow(frame.Body, p.opts.Shape)
	if err != nil {
		reason := "parse"
		if errors.Is(err, imu.ErrShape) {
			reason = "shape"
		}
		p.met.RecordRejected(ctx, reason)
		p.log.Warn("frame rejected", "conn", conn.ID, "reason", reason, "err", err)
		p.record(ctx, conn, sink.Event{Kind: sink.KindFrameRejected, Detail: err.Error()})
		return Result{Outcome: Rejected, Err: err}
	}

	conn.windows++
	id := conn.windows
	rec := sink.WindowRecord{
		Session:  conn.Session,
		Peer:     conn.Peer,
		ConnID:   conn.ID,
		WindowID: id,
		Received: start,
		Window:   w,
	}
	if err := p.sink.SaveWindow(ctx, rec); err != nil {
		p.met.SinkErrors.Add(ctx, 1)
		p.log.Error("save window", "conn", conn.ID, "window", id, "err", err)
	}

	label, err := p.classify(w)
	if err != nil {
		p.met.ClassifierErrors.Add(ctx, 1)
		p.log.Warn("window skipped", "conn", conn.ID, "window", id, "err", err)
		p.record(ctx, conn, sink.Event{Kind: sink.KindClassifierError, WindowID: id, Detail: err.Error()})
		return Result{Outcome: Failed, WindowID: id, Err: err}
	}
	p.met.RecordPrediction(ctx, label)
	p.record(ctx, conn, sink.Event{Kind: sink.KindPrediction, WindowID: id, Label: label})

	action := p.opts.Mapper.Map(label)
	res := Result{Outcome: Ignored, WindowID: id, Label: label, Action: action}
	if action != gesture.None {
		p.opts.Bridge.PushAction(session.ActionEvent{
			Action:   action,
			Label:    label,
			WindowID: id,
			At:       p.opts.now(),
		})
		p.met.RecordAction(ctx, action.String())
		p.record(ctx, conn, sink.Event{Kind: sink.KindAction, WindowID: id, Label: label, Action: action.String()})
		p.log.Info("gesture", "conn", conn.ID, "window", id, "label", label, "action", action)
		res.Outcome = Forwarded
	} else {
		p.log.Debug("prediction", "conn", conn.ID, "window", id, "label", label)
	}

	p.met.WindowDuration.Record(ctx, p.opts.now().Sub(start).Seconds())
	return res
}

func (p *Pipeline) classify(w imu.Window) (string, error) {
	vec, err := p.opts.Extractor.Extract(w)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}
	label, err := p.opts.Classifier.Predict(vec)
	if err != nil {
		return "", fmt.Errorf("predict: %w", err)
	}
	return label, nil
}

func (p *Pipeline) record(ctx context.Context, conn *Conn, ev sink.Event) {
	ev.Time = p.opts.now()
	ev.Session = conn.Session
	ev.Peer = conn.Peer
	ev.ConnID = conn.ID
	if err := p.sink.RecordEvent(ctx, ev); err != nil {
		p.met.SinkErrors.Add(ctx, 1)
		p.log.Error("record event", "kind", ev.Kind, "conn", conn.ID, "err", err)
	}
}

// Stream is the processing state of one connection. It is not safe for
// concurrent use; the connection's read loop owns it.
type Stream struct {
	p      *Pipeline
	conn   *Conn
	asm    *wire.Assembler
	closed bool
}

// Conn returns the connection the stream belongs to.
func (s *Stream) Conn() *Conn { return s.conn }

// Process feeds bytes from the connection and handles every completed frame
// in order. The returned error is wire.ErrBufferOverflow, which the caller
// must treat as fatal for the connection.
func (s *Stream) Process(ctx context.Context, data []byte) ([]Result, error) {
	frames, err := s.asm.Feed(data)
	results := make([]Result, 0, len(frames))
	for _, f := range frames {
		results = append(results, s.p.HandleFrame(ctx, s.conn, f))
	}
	return results, err
}

// Feed is Process without the per-frame results.
func (s *Stream) Feed(ctx context.Context, data []byte) error {
	_, err := s.Process(ctx, data)
	return err
}

// End discards buffered bytes and records the disconnect. Calls after the
// first are no-ops.
func (s *Stream) End(ctx context.Context, reason error) {
	if s.closed {
		return
	}
	s.closed = true

	pending := s.asm.Buffered()
	s.asm.Reset()
	detail := "closed"
	if reason != nil {
		detail = reason.Error()
	}
	s.p.met.ActiveConnections.Add(ctx, -1)
	s.p.record(ctx, s.conn, sink.Event{Kind: sink.KindDisconnected, Detail: detail})
	s.p.log.Info("device disconnected",
		"conn", s.conn.ID,
		"peer", s.conn.Peer,
		"windows", s.conn.windows,
		"pending_bytes", pending,
		"resyncs", s.asm.Resyncs(),
		"reason", detail,
	)
}
