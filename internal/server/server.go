// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package server is the TCP connection manager for the wearable.
//
// It owns one listening socket and at most one device connection. The
// accept loop and the read loop both block only up to the poll interval, so
// Stop is observed within that bound. A second device connecting while one
// is active is closed immediately.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/observe"
	"github.com/relabs-tech/gesture_computer/internal/session"
)

var (
	// ErrAllPortsInUse is returned by Start when every candidate port is taken.
	ErrAllPortsInUse = errors.New("all candidate ports in use")
	// ErrAlreadyRunning is returned by Start when the server is not Idle.
	ErrAlreadyRunning = errors.New("server already running")
	// ErrNotListening is returned by Run before a successful Start or when
	// the accept loop is already running.
	ErrNotListening = errors.New("server not listening")

	errStopped = errors.New("server stopped")
)

// Defaults applied by New for zero Options fields.
const (
	DefaultPollInterval = time.Second
	DefaultReadChunk    = 4096
)

// Stream consumes the bytes of one connection.
type Stream interface {
	// Feed handles received bytes. A non-nil error ends the connection.
	Feed(ctx context.Context, data []byte) error
	// End is called once when the connection is gone.
	End(ctx context.Context, reason error)
}

// Handler opens a Stream per accepted connection.
type Handler interface {
	Begin(ctx context.Context, peer string) Stream
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, peer string) Stream

func (f HandlerFunc) Begin(ctx context.Context, peer string) Stream { return f(ctx, peer) }

// Options configures a Server.
type Options struct {
	Host  string
	Ports []int // tried in order while the address is in use

	// AdvertiseHost is the address devices should dial, reported in Status.
	AdvertiseHost string

	PollInterval time.Duration
	ReadChunk    int

	Handler  Handler
	Listener session.Listener // connection transitions, usually a *session.Bridge

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Status is a snapshot for consumers.
type Status struct {
	State     State      `json:"state"`
	Addr      string     `json:"addr,omitempty"`
	Advertise string     `json:"advertise,omitempty"`
	Peer      string     `json:"peer,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Accepted  int        `json:"accepted"`
	Refused   int        `json:"refused"`
}

// Server is the connection manager. All methods are safe for concurrent use.
type Server struct {
	opts Options
	log  *slog.Logger
	met  *observe.Metrics

	running atomic.Bool
	wg      sync.WaitGroup // accept loop and connection goroutine

	// mu guards everything below. It is never held across socket I/O or
	// listener callbacks.
	mu       sync.Mutex
	state    State
	serving  bool
	ln       net.Listener
	conn     net.Conn
	peer     string
	since    time.Time
	accepted int
	refused  int
}

// New creates an Idle server.
func New(opts Options) (*Server, error) {
	if opts.Handler == nil {
		return nil, errors.New("server: handler is required")
	}
	if len(opts.Ports) == 0 {
		return nil, errors.New("server: at least one port is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReadChunk <= 0 {
		opts.ReadChunk = DefaultReadChunk
	}
	if opts.Listener == nil {
		opts.Listener = session.Callbacks{}
	}
	s := &Server{opts: opts, log: opts.Logger, met: opts.Metrics}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.met == nil {
		s.met = observe.Discard()
	}
	return s, nil
}

// Start binds the first free candidate port and moves Idle → Listening.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrAlreadyRunning
	}

	var lc net.ListenConfig
	for _, port := range s.opts.Ports {
		addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(port))
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err == nil {
			s.ln = ln
			s.state = Listening
			s.running.Store(true)
			s.log.Info("listening", "addr", ln.Addr().String(), "advertise", s.advertise())
			return nil
		}
		if errors.Is(err, syscall.EADDRINUSE) {
			s.log.Warn("port in use, trying next", "addr", addr)
			continue
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return fmt.Errorf("%w: %v", ErrAllPortsInUse, s.opts.Ports)
}

// Run serves connections until Stop is called or ctx is cancelled, then
// returns after both loops have exited.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Listening || s.serving {
		s.mu.Unlock()
		return ErrNotListening
	}
	s.serving = true
	ln := s.ln
	s.wg.Add(1)
	s.mu.Unlock()

	loopDone := make(chan struct{})
	go func() {
		defer s.wg.Done()
		defer close(loopDone)
		s.acceptLoop(ctx, ln)
	}()

	select {
	case <-ctx.Done():
		s.Stop()
	case <-loopDone:
	}
	return nil
}

// ListenAndServe is Start followed by Run.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Run(ctx)
}

// Stop closes the listening and connection sockets and waits for the loops
// to exit. The active connection, if any, is reported disconnected before
// Stop returns; nothing is reported afterwards. Stopping an Idle server is a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.state == Idle || s.state == Closing {
		s.mu.Unlock()
		return
	}
	s.state = Closing
	s.running.Store(false)
	ln, conn := s.ln, s.conn
	s.mu.Unlock()

	s.log.Info("stopping server")
	if ln != nil {
		ln.Close()
	}
	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.state = Idle
	s.serving = false
	s.ln = nil
	s.conn = nil
	s.peer = ""
	s.mu.Unlock()
	s.log.Info("server stopped")
}

// State returns the current state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a consistent snapshot of the connection state.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:     s.state,
		Advertise: s.advertise(),
		Peer:      s.peer,
		Accepted:  s.accepted,
		Refused:   s.refused,
	}
	if !s.since.IsZero() {
		since := s.since
		st.Since = &since
	}
	if s.ln != nil {
		st.Addr = s.ln.Addr().String()
	}
	return st
}

// Addr returns the bound address, or nil when not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// advertise must be called with mu held.
func (s *Server) advertise() string {
	if s.ln == nil || s.opts.AdvertiseHost == "" {
		return ""
	}
	_, port, err := net.SplitHostPort(s.ln.Addr().String())
	if err != nil {
		return ""
	}
	return net.JoinHostPort(s.opts.AdvertiseHost, port)
}

const minAcceptBackoff = 5 * time.Millisecond

type deadliner interface {
	SetDeadline(t time.Time) error
}

// acceptLoop backs off on persistent accept errors (EMFILE and the like),
// doubling from minAcceptBackoff up to the poll interval.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	var backoff time.Duration
	for s.running.Load() {
		if d, ok := ln.(deadliner); ok {
			_ = d.SetDeadline(time.Now().Add(s.opts.PollInterval))
		}
		c, err := ln.Accept()
		if err != nil {
			if isTimeout(err) {
				backoff = 0
				continue
			}
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			backoff = min(max(2*backoff, minAcceptBackoff), s.opts.PollInterval)
			s.log.Warn("accept failed", "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		s.admit(ctx, c)
	}
}

// admit takes ownership of c or refuses it.
func (s *Server) admit(ctx context.Context, c net.Conn) {
	peer := c.RemoteAddr().String()

	s.mu.Lock()
	if !s.running.Load() || s.state != Listening {
		busy := s.state == Connected
		if busy {
			s.refused++
		}
		s.mu.Unlock()
		c.Close()
		if busy {
			s.met.RecordConnection(ctx, "refused")
			s.log.Warn("refused connection, device already connected", "peer", peer)
		}
		return
	}
	s.state = Connected
	s.conn = c
	s.peer = peer
	s.since = time.Now()
	s.accepted++
	s.wg.Add(1)
	s.mu.Unlock()

	s.met.RecordConnection(ctx, "accepted")
	s.opts.Listener.OnConnected(peer)
	stream := s.opts.Handler.Begin(ctx, peer)

	go func() {
		defer s.wg.Done()
		s.serveConn(ctx, c, peer, stream)
	}()
}

func (s *Server) serveConn(ctx context.Context, c net.Conn, peer string, stream Stream) {
	reason := s.readLoop(ctx, c, stream)
	c.Close()

	stream.End(context.WithoutCancel(ctx), reason)

	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
		s.peer = ""
		s.since = time.Now()
	}
	if s.state == Connected {
		s.state = Listening
	}
	s.mu.Unlock()

	s.log.Info("connection closed", "peer", peer, "reason", reasonText(reason))
	s.opts.Listener.OnDisconnected()
}

// readLoop returns why the connection ended: nil for a clean end of
// stream, otherwise the error.
func (s *Server) readLoop(ctx context.Context, c net.Conn, stream Stream) error {
	buf := make([]byte, s.opts.ReadChunk)
	for {
		if !s.running.Load() {
			return errStopped
		}
		_ = c.SetReadDeadline(time.Now().Add(s.opts.PollInterval))
		n, err := c.Read(buf)
		if n > 0 {
			if ferr := stream.Feed(ctx, buf[:n]); ferr != nil {
				s.log.Error("dropping connection", "err", ferr)
				return ferr
			}
		}
		switch {
		case err == nil:
		case isTimeout(err):
			// no data yet
		case errors.Is(err, io.EOF):
			return nil
		case !s.running.Load():
			return errStopped
		default:
			return err
		}
	}
}

func reasonText(err error) string {
	if err == nil {
		return "peer closed"
	}
	return err.Error()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
