// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/sink"
	"github.com/relabs-tech/gesture_computer/internal/sink/mqttsink"
)

func TestFormatMonitorLine(t *testing.T) {
	topics := mqttsink.Topics{Actions: "gesture/actions", Events: "gesture/events", Status: "gesture/status"}
	mustJSON := func(v any) []byte {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		topic   string
		payload []byte
		want    string
	}{
		{
			name:    "action",
			topic:   "gesture/actions",
			payload: mustJSON(sink.Event{Time: at, Kind: sink.KindAction, ConnID: 2, WindowID: 7, Label: "pinchL", Action: "LEFT"}),
			want:    "[ACTION] LEFT  label=pinchL window=7 conn=2",
		},
		{
			name:    "status",
			topic:   "gesture/status",
			payload: mustJSON(mqttsink.StatusMessage{Connected: true, Peer: "10.0.0.9:5000", Session: "user1_a", Time: at}),
			want:    "[STATUS] connected    peer=10.0.0.9:5000 session=user1_a",
		},
		{
			name:    "rejected frame",
			topic:   "gesture/events/frame_rejected",
			payload: mustJSON(sink.Event{Time: at, Kind: sink.KindFrameRejected, ConnID: 1, Detail: "bad shape"}),
			want:    `[EVENT ] frame_rejected   conn=1 detail="bad shape"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatMonitorLine(topics, tt.topic, tt.payload)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}

	if _, err := formatMonitorLine(topics, "gesture/actions", []byte("{")); err == nil {
		t.Error("expected error for bad JSON")
	}
}
