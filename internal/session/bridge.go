// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session is the seam between the gesture core and its consumer
// (the game loop). The core is the only producer of actions and the only
// writer of connection transitions; the consumer polls actions once per
// tick and is told about connects and disconnects through callbacks.
//
// The action queue is bounded. When it is full the oldest action is
// dropped so that PushAction never blocks the connection loop.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/gesture"
)

// DefaultQueueSize is used when NewBridge is given a non-positive capacity.
const DefaultQueueSize = 64

// ActionEvent is one forwarded gesture.
type ActionEvent struct {
	Action   gesture.Action `json:"action"`
	Label    string         `json:"label"`
	WindowID int            `json:"window_id"`
	At       time.Time      `json:"at"`
}

// Listener receives single-shot connection transitions.
type Listener interface {
	OnConnected(peer string)
	OnDisconnected()
}

// Callbacks adapts two functions to Listener. Nil fields are skipped.
type Callbacks struct {
	Connected    func(peer string)
	Disconnected func()
}

func (c Callbacks) OnConnected(peer string) {
	if c.Connected != nil {
		c.Connected(peer)
	}
}

func (c Callbacks) OnDisconnected() {
	if c.Disconnected != nil {
		c.Disconnected()
	}
}

// Namer is implemented by the consumer to name per-session artifacts.
type Namer interface {
	SessionName() string
}

// StaticNamer returns a fixed name.
type StaticNamer string

func (n StaticNamer) SessionName() string { return string(n) }

// ExperimentName builds the user<participant>_<condition> session name.
func ExperimentName(participant, condition string) StaticNamer {
	return StaticNamer(fmt.Sprintf("user%s_%s", participant, condition))
}

// Status is a consistent snapshot of the bridge.
type Status struct {
	Connected bool       `json:"connected"`
	Peer      string     `json:"peer,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Queued    int        `json:"queued"`
	Pushed    uint64     `json:"pushed"`
	Dropped   uint64     `json:"dropped"`
}

// Bridge is safe for concurrent use.
type Bridge struct {
	mu sync.Mutex
	// ring buffer of pending actions
	buf   []ActionEvent
	head  int
	count int

	pushed    uint64
	dropped   uint64
	connected bool
	peer      string
	since     time.Time
	listeners []Listener

	ready chan struct{}
}

// NewBridge creates a bridge whose queue holds at most capacity actions.
func NewBridge(capacity int) *Bridge {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Bridge{
		buf:   make([]ActionEvent, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Subscribe registers a listener for connection transitions.
func (b *Bridge) Subscribe(l Listener) {
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

// PushAction enqueues ev unless its action is None. It never blocks; when
// the queue is full the oldest entry is overwritten. Reports whether ev was queued.
func (b *Bridge) PushAction(ev ActionEvent) bool {
	if ev.Action == gesture.None {
		return false
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	if b.count == len(b.buf) {
		b.head = (b.head + 1) % len(b.buf)
		b.count--
		b.dropped++
	}
	b.buf[(b.head+b.count)%len(b.buf)] = ev
	b.count++
	b.pushed++
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes the oldest pending action.
func (b *Bridge) TryPop() (ActionEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return ActionEvent{}, false
	}
	ev := b.buf[b.head]
	b.buf[b.head] = ActionEvent{}
	b.head = (b.head + 1) % len(b.buf)
	b.count--
	return ev, true
}

// Poll drains every pending action in arrival order.
func (b *Bridge) Poll() []ActionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	out := make([]ActionEvent, 0, b.count)
	for b.count > 0 {
		out = append(out, b.buf[b.head])
		b.buf[b.head] = ActionEvent{}
		b.head = (b.head + 1) % len(b.buf)
		b.count--
	}
	return out
}

// Ready is signalled after a push; consumers that prefer waiting over
// polling select on it and then call Poll.
func (b *Bridge) Ready() <-chan struct{} { return b.ready }

// OnConnected records a new connection and notifies listeners. Repeated
// calls without an intervening OnDisconnected are ignored.
func (b *Bridge) OnConnected(peer string) {
	b.mu.Lock()
	if b.connected {
		b.mu.Unlock()
		return
	}
	b.connected = true
	b.peer = peer
	b.since = time.Now()
	ls := append([]Listener(nil), b.listeners...)
	b.mu.Unlock()

	for _, l := range ls {
		l.OnConnected(peer)
	}
}

// OnDisconnected clears the connection and notifies listeners once per
// connection.
func (b *Bridge) OnDisconnected() {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return
	}
	b.connected = false
	b.peer = ""
	b.since = time.Now()
	ls := append([]Listener(nil), b.listeners...)
	b.mu.Unlock()

	for _, l := range ls {
		l.OnDisconnected()
	}
}

// Status returns a snapshot.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{
		Connected: b.connected,
		Peer:      b.peer,
		Queued:    b.count,
		Pushed:    b.pushed,
		Dropped:   b.dropped,
	}
	if b.connected {
		since := b.since
		st.Since = &since
	}
	return st
}
