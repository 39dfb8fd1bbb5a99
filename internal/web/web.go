// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package web is the browser consumer: status API, a websocket that streams
// gesture actions and connection changes, and the Prometheus endpoint.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/gesture_computer/internal/server"
	"github.com/relabs-tech/gesture_computer/internal/session"
)

const (
	defaultTick = 50 * time.Millisecond
	writeWait   = 5 * time.Second
	pingPeriod  = 30 * time.Second
	sendBuffer  = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the game page may be served from another port
	},
}

// StatusSource reports connection manager state.
type StatusSource interface {
	Status() server.Status
}

// Message is sent to websocket clients.
type Message struct {
	Type   string               `json:"type"` // action, connected, disconnected, status
	Action *session.ActionEvent `json:"action,omitempty"`
	Peer   string               `json:"peer,omitempty"`
	Status *StatusPayload       `json:"status,omitempty"`
}

// StatusPayload is served by /api/status.
type StatusPayload struct {
	Server  *server.Status `json:"server,omitempty"`
	Session session.Status `json:"session"`
}

// Options configures the web consumer.
type Options struct {
	Bridge *session.Bridge
	Status StatusSource // optional

	// Stream enables /ws. Only one consumer may drain the bridge.
	Stream bool

	// Tick is how often the bridge is polled. Zero means 50ms.
	Tick time.Duration

	// StaticDir, when set, is served at /.
	StaticDir string

	Logger *slog.Logger
}

// Server serves the HTTP endpoints.
type Server struct {
	opts Options
	log  *slog.Logger
	mux  *http.ServeMux

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New registers the handlers. When opts.Stream is set the returned server
// should be subscribed to the bridge so connection changes reach clients.
func New(opts Options) *Server {
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	s := &Server{
		opts:    opts,
		log:     opts.Logger,
		mux:     http.NewServeMux(),
		clients: make(map[*client]struct{}),
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.Handle("/metrics", promhttp.Handler())
	if opts.Stream {
		s.mux.HandleFunc("/ws", s.handleWS)
		opts.Bridge.Subscribe(s)
	}
	if opts.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(opts.StaticDir)))
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr and pumps the bridge until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("web server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	if s.opts.Stream {
		go s.Pump(ctx)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.closeClients()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Pump drains the bridge and broadcasts actions until ctx is done.
func (s *Server) Pump(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.opts.Bridge.Ready():
		case <-ticker.C:
		}
		for _, ev := range s.opts.Bridge.Poll() {
			s.broadcast(Message{Type: "action", Action: &ev})
		}
	}
}

// OnConnected implements session.Listener.
func (s *Server) OnConnected(peer string) {
	s.broadcast(Message{Type: "connected", Peer: peer})
}

// OnDisconnected implements session.Listener.
func (s *Server) OnDisconnected() {
	s.broadcast(Message{Type: "disconnected"})
}

func (s *Server) statusPayload() StatusPayload {
	p := StatusPayload{Session: s.opts.Bridge.Status()}
	if s.opts.Status != nil {
		st := s.opts.Status.Status()
		p.Server = &st
	}
	return p
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.statusPayload()); err != nil {
		s.log.Warn("status encode failed", "err", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	st := s.statusPayload()
	hello, _ := json.Marshal(Message{Type: "status", Status: &st})
	c.send <- hello

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Info("websocket client connected", "remote", r.RemoteAddr, "clients", s.clientCount())

	go s.writePump(c)
	s.readPump(c)
}

// readPump discards client input and unregisters on close.
func (s *Server) readPump(c *client) {
	defer s.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read error", "err", err)
			}
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast never blocks; a client whose buffer is full is disconnected.
func (s *Server) broadcast(m Message) {
	payload, err := json.Marshal(m)
	if err != nil {
		s.log.Error("websocket marshal", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			s.log.Warn("websocket client too slow, dropping")
			delete(s.clients, c)
			close(c.send)
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
