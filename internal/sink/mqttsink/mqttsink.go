// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mqttsink publishes gesture events to an MQTT broker so that
// dashboards and loggers elsewhere on the network can follow a session.
package mqttsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gesture_computer/internal/sink"
)

const publishTimeout = 2 * time.Second

// Publisher is the subset of mqtt.Client used by the sink.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Topics names where each record goes.
type Topics struct {
	Actions string // one message per forwarded action
	Events  string // prefix; events go to <Events>/<kind>
	Status  string // retained connection status
}

// StatusMessage is the retained payload on the status topic.
type StatusMessage struct {
	Connected bool      `json:"connected"`
	Peer      string    `json:"peer,omitempty"`
	Session   string    `json:"session"`
	Time      time.Time `json:"time"`
}

// Sink is a sink.Sink backed by an MQTT publisher.
type Sink struct {
	pub    Publisher
	topics Topics
	// disconnect is set when the sink owns the client.
	disconnect func()
}

// New wraps an existing publisher. The caller keeps ownership of it.
func New(pub Publisher, topics Topics) *Sink {
	return &Sink{pub: pub, topics: topics}
}

// Connect dials the broker and returns a Sink that disconnects on Close.
func Connect(broker, clientID string, topics Topics) (*Sink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqttsink: connect %s: %w", broker, token.Error())
	}
	s := New(client, topics)
	s.disconnect = func() { client.Disconnect(250) }
	return s, nil
}

func (s *Sink) publish(topic string, retained bool, v any) error {
	if topic == "" {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mqttsink: marshal: %w", err)
	}
	token := s.pub.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqttsink: publish %s: %w", topic, errPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttsink: publish %s: %w", topic, err)
	}
	return nil
}

var errPublishTimeout = errors.New("timed out")

// SaveWindow does not publish raw windows; they are too large for the
// event topics and are kept by the file and SQLite sinks.
func (s *Sink) SaveWindow(context.Context, sink.WindowRecord) error { return nil }

// RecordEvent publishes ev on its event topic, actions additionally on the
// action topic and connection transitions on the retained status topic.
func (s *Sink) RecordEvent(_ context.Context, ev sink.Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	var errs []error
	if s.topics.Events != "" {
		errs = append(errs, s.publish(s.topics.Events+"/"+string(ev.Kind), false, ev))
	}
	switch ev.Kind {
	case sink.KindAction:
		errs = append(errs, s.publish(s.topics.Actions, false, ev))
	case sink.KindConnected, sink.KindDisconnected:
		errs = append(errs, s.publish(s.topics.Status, true, StatusMessage{
			Connected: ev.Kind == sink.KindConnected,
			Peer:      ev.Peer,
			Session:   ev.Session,
			Time:      ev.Time,
		}))
	}
	return errors.Join(errs...)
}

// Close disconnects the client if the sink created it.
func (s *Sink) Close() error {
	if s.disconnect != nil {
		s.disconnect()
	}
	return nil
}

var _ sink.Sink = (*Sink)(nil)
