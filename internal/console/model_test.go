// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package console

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/relabs-tech/gesture_computer/internal/gesture"
	"github.com/relabs-tech/gesture_computer/internal/server"
	"github.com/relabs-tech/gesture_computer/internal/session"
)

type fixedStatus server.Status

func (f fixedStatus) Status() server.Status { return server.Status(f) }

func TestTickDrainsBridge(t *testing.T) {
	bridge := session.NewBridge(4)
	m := NewModel(Options{
		Bridge:  bridge,
		Status:  fixedStatus{State: server.Connected, Advertise: "10.0.0.2:8080"},
		Session: "user3_standing",
	})
	if m.Init() == nil {
		t.Fatal("Init should schedule a tick")
	}

	bridge.OnConnected("10.0.0.9:5000")
	bridge.PushAction(session.ActionEvent{Action: gesture.Left, Label: "pinchL", WindowID: 1})
	bridge.PushAction(session.ActionEvent{Action: gesture.Right, Label: "pinchR", WindowID: 2})
	bridge.PushAction(session.ActionEvent{Action: gesture.Left, Label: "pinchL", WindowID: 3})

	_, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick should reschedule")
	}
	if m.left != 2 || m.right != 1 {
		t.Fatalf("left=%d right=%d", m.left, m.right)
	}
	if bridge.Status().Queued != 0 {
		t.Fatal("bridge not drained")
	}

	view := m.View()
	for _, want := range []string{"user3_standing", "10.0.0.9:5000", "10.0.0.2:8080", "pinchR #2", "connected"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRecentIsBounded(t *testing.T) {
	bridge := session.NewBridge(64)
	m := NewModel(Options{Bridge: bridge})
	for i := 1; i <= 25; i++ {
		bridge.PushAction(session.ActionEvent{Action: gesture.Right, Label: "pinchR", WindowID: i})
	}
	m.Update(tickMsg(time.Now()))

	if len(m.recent) != maxRecent {
		t.Fatalf("recent = %d, want %d", len(m.recent), maxRecent)
	}
	if m.recent[len(m.recent)-1].WindowID != 25 || m.right != 25 {
		t.Fatalf("last = %+v, right = %d", m.recent[len(m.recent)-1], m.right)
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(Options{Bridge: session.NewBridge(1)})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
}
