// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/relabs-tech/gesture_computer/internal/classifier"
	"github.com/relabs-tech/gesture_computer/internal/config"
	"github.com/relabs-tech/gesture_computer/internal/features"
	"github.com/relabs-tech/gesture_computer/internal/observe"
	"github.com/relabs-tech/gesture_computer/internal/pipeline"
	"github.com/relabs-tech/gesture_computer/internal/server"
	"github.com/relabs-tech/gesture_computer/internal/session"
	"github.com/relabs-tech/gesture_computer/internal/sink"
	"github.com/relabs-tech/gesture_computer/internal/sink/filesink"
	"github.com/relabs-tech/gesture_computer/internal/sink/mqttsink"
	"github.com/relabs-tech/gesture_computer/internal/sink/sqlitesink"
)

// stack is everything a run mode shares: the loaded model, the processing
// pipeline, the consumer bridge and the persistence sinks.
type stack struct {
	cfg      *config.Config
	log      *slog.Logger
	metrics  *observe.Metrics
	model    *classifier.Model
	bridge   *session.Bridge
	pipeline *pipeline.Pipeline
	sinks    sink.Multi
}

// newStack loads the model and opens the sinks. A model that cannot be
// loaded, or does not match the feature length, is fatal here so the
// server never starts listening with it.
func newStack(cfg *config.Config, log *slog.Logger, met *observe.Metrics) (*stack, error) {
	model, err := classifier.Load(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	log.Info("model loaded", "path", cfg.ModelPath, "kind", model.Kind(), "dim", model.Dim(), "classes", model.Classes())

	ext, err := features.New(cfg.Features())
	if err != nil {
		return nil, err
	}
	mapper, err := cfg.Mapper()
	if err != nil {
		return nil, err
	}
	log.Info("gesture mapping", "map", mapper.String())

	sinks, err := openSinks(cfg, log)
	if err != nil {
		return nil, err
	}

	st := &stack{
		cfg:     cfg,
		log:     log,
		metrics: met,
		model:   model,
		bridge:  session.NewBridge(cfg.ActionQueueSize),
		sinks:   sinks,
	}
	st.pipeline, err = pipeline.New(pipeline.Options{
		Shape:      cfg.Shape(),
		Extractor:  ext,
		Classifier: model,
		Mapper:     mapper,
		Bridge:     st.bridge,
		Sink:       sinks,
		Namer:      cfg.Session(),
		Metrics:    met,
		Logger:     log,
		MaxBuffer:  cfg.MaxBufferBytes,
	})
	if err != nil {
		_ = sinks.Close()
		return nil, err
	}
	return st, nil
}

func openSinks(cfg *config.Config, log *slog.Logger) (sink.Multi, error) {
	sinks := sink.Multi{filesink.New(cfg.ResultsDir)}

	if cfg.EventDBPath != "" {
		store, err := sqlitesink.Open(cfg.EventDBPath)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open event store: %w", err), sinks.Close())
		}
		log.Info("event store opened", "path", cfg.EventDBPath)
		sinks = append(sinks, store)
	}

	if cfg.MQTTBroker != "" {
		pub, err := mqttsink.Connect(cfg.MQTTBroker, cfg.MQTTClientID, mqttsink.Topics{
			Actions: cfg.TopicActions,
			Events:  cfg.TopicEvents,
			Status:  cfg.TopicStatus,
		})
		if err != nil {
			// publishing is optional; keep recording locally
			log.Warn("MQTT publishing disabled", "broker", cfg.MQTTBroker, "err", err)
		} else {
			log.Info("publishing events over MQTT", "broker", cfg.MQTTBroker)
			sinks = append(sinks, pub)
		}
	}
	return sinks, nil
}

// handler adapts the pipeline to the connection manager.
func (st *stack) handler() server.Handler {
	return server.HandlerFunc(func(ctx context.Context, peer string) server.Stream {
		return st.pipeline.Begin(ctx, peer)
	})
}

func (st *stack) newServer() (*server.Server, error) {
	advertise := server.ResolveAdvertiseHost(st.cfg.AdvertiseHost)
	return server.New(server.Options{
		Host:          st.cfg.ListenHost,
		Ports:         st.cfg.Ports(),
		AdvertiseHost: advertise,
		PollInterval:  st.cfg.PollInterval(),
		ReadChunk:     st.cfg.ReadChunkBytes,
		Handler:       st.handler(),
		Listener:      st.bridge,
		Metrics:       st.metrics,
		Logger:        st.log,
	})
}

func (st *stack) close() {
	if err := st.sinks.Close(); err != nil {
		st.log.Error("closing sinks", "err", err)
	}
}
