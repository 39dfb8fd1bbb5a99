// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gesture_computer/internal/config"
	"github.com/relabs-tech/gesture_computer/internal/sink"
	"github.com/relabs-tech/gesture_computer/internal/sink/mqttsink"
)

// RunMonitor subscribes to the MQTT topics a server publishes on and prints
// one line per message until ctx is done. withEvents adds every event kind.
func RunMonitor(ctx context.Context, cfg *config.Config, out io.Writer, withEvents bool) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required for monitor mode")
	}
	log := slog.Default()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID + "-monitor")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Info("monitor connected", "broker", cfg.MQTTBroker)

	topics := mqttsink.Topics{Actions: cfg.TopicActions, Events: cfg.TopicEvents, Status: cfg.TopicStatus}
	subs := []string{topics.Actions, topics.Status}
	if withEvents {
		subs = append(subs, topics.Events+"/#")
	}

	lines := make(chan string, 64)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		line, err := formatMonitorLine(topics, msg.Topic(), msg.Payload())
		if err != nil {
			log.Warn("monitor: bad payload", "topic", msg.Topic(), "err", err)
			return
		}
		select {
		case lines <- line:
		default:
			log.Warn("monitor: output backlog, dropping message", "topic", msg.Topic())
		}
	}
	for _, topic := range subs {
		if topic == "" || topic == "/#" {
			continue
		}
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Info("monitor subscribed", "topic", topic)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("monitor shutting down")
			return nil
		case line := <-lines:
			fmt.Fprintln(out, line)
		}
	}
}

func formatMonitorLine(topics mqttsink.Topics, topic string, payload []byte) (string, error) {
	if topic == topics.Status {
		var st mqttsink.StatusMessage
		if err := json.Unmarshal(payload, &st); err != nil {
			return "", err
		}
		state := "disconnected"
		if st.Connected {
			state = "connected"
		}
		return fmt.Sprintf("[STATUS] %-12s peer=%s session=%s", state, st.Peer, st.Session), nil
	}

	var ev sink.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", err
	}
	if topic == topics.Actions {
		return fmt.Sprintf("[ACTION] %-5s label=%s window=%d conn=%d",
			ev.Action, ev.Label, ev.WindowID, ev.ConnID), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[EVENT ] %-16s conn=%d", ev.Kind, ev.ConnID)
	if ev.WindowID != 0 {
		fmt.Fprintf(&b, " window=%d", ev.WindowID)
	}
	if ev.Label != "" {
		fmt.Fprintf(&b, " label=%s", ev.Label)
	}
	if ev.Detail != "" {
		fmt.Fprintf(&b, " detail=%q", ev.Detail)
	}
	return b.String(), nil
}
