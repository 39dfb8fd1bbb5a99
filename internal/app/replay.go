// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/relabs-tech/gesture_computer/internal/config"
	"github.com/relabs-tech/gesture_computer/internal/observe"
	"github.com/relabs-tech/gesture_computer/internal/pipeline"
	"github.com/relabs-tech/gesture_computer/internal/session"
)

// ReplaySummary counts what a recorded stream produced.
type ReplaySummary struct {
	Frames    int
	Rejected  int
	Failed    int
	Ignored   int
	Forwarded int
	Actions   []session.ActionEvent
}

func (s *ReplaySummary) add(r pipeline.Result) {
	s.Frames++
	switch r.Outcome {
	case pipeline.Rejected:
		s.Rejected++
	case pipeline.Failed:
		s.Failed++
	case pipeline.Ignored:
		s.Ignored++
	case pipeline.Forwarded:
		s.Forwarded++
	}
}

// ingest runs one device session over r: connect, feed until EOF, disconnect.
// It returns the reason the session ended, nil for a clean EOF.
func ingest(ctx context.Context, st *stack, r io.Reader, peer string, onResult func(pipeline.Result)) error {
	st.bridge.OnConnected(peer)
	stream := st.pipeline.Begin(ctx, peer)

	buf := make([]byte, st.cfg.ReadChunkBytes)
	var reason error
	for reason == nil {
		if err := ctx.Err(); err != nil {
			reason = err
			break
		}
		n, err := r.Read(buf)
		if n > 0 {
			results, ferr := stream.Process(ctx, buf[:n])
			if onResult != nil {
				for _, res := range results {
					onResult(res)
				}
			}
			if ferr != nil {
				reason = ferr
				break
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			reason = err
		}
	}

	stream.End(context.WithoutCancel(ctx), reason)
	st.bridge.OnDisconnected()
	return reason
}

// RunReplay feeds a recorded byte stream through the pipeline offline and
// writes a summary to out. Windows and events are persisted like a live session.
func RunReplay(ctx context.Context, cfg *config.Config, path string, out io.Writer) (ReplaySummary, error) {
	var sum ReplaySummary
	f, err := os.Open(path)
	if err != nil {
		return sum, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	st, err := newStack(cfg, slog.Default(), observe.DefaultMetrics())
	if err != nil {
		return sum, err
	}
	defer st.close()

	err = ingest(ctx, st, f, "replay:"+path, sum.add)
	sum.Actions = st.bridge.Poll()

	fmt.Fprintf(out, "frames: %d  rejected: %d  failed: %d  ignored: %d  forwarded: %d\n",
		sum.Frames, sum.Rejected, sum.Failed, sum.Ignored, sum.Forwarded)
	for _, ev := range sum.Actions {
		fmt.Fprintf(out, "window %4d  %-5s  %s\n", ev.WindowID, ev.Action, ev.Label)
	}
	return sum, err
}
