// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sqlitesink persists events and windows into a SQLite database.
package sqlitesink

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/relabs-tech/gesture_computer/internal/sink"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for gesture sessions.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single writer keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY,
			at TEXT NOT NULL,
			kind TEXT NOT NULL,
			session TEXT NOT NULL,
			peer TEXT NOT NULL,
			conn_id INTEGER NOT NULL,
			window_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS windows (
			session TEXT NOT NULL,
			conn_id INTEGER NOT NULL,
			window_id INTEGER NOT NULL,
			received_at TEXT NOT NULL,
			peer TEXT NOT NULL,
			rows INTEGER NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (session, conn_id, window_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_kind ON events(session, kind);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlitesink: migrate: %w", err)
		}
	}
	return nil
}

// SaveWindow stores the window as CSV text.
func (s *Store) SaveWindow(ctx context.Context, rec sink.WindowRecord) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rec.Window.Fields); err != nil {
		return fmt.Errorf("sqlitesink: encode window: %w", err)
	}
	received := rec.Received
	if received.IsZero() {
		received = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO windows (session, conn_id, window_id, received_at, peer, rows, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Session, rec.ConnID, rec.WindowID,
		received.Format(time.RFC3339Nano), rec.Peer, rec.Window.Len(), buf.String(),
	)
	if err != nil {
		return fmt.Errorf("sqlitesink: insert window: %w", err)
	}
	return nil
}

// RecordEvent appends one event row.
func (s *Store) RecordEvent(ctx context.Context, ev sink.Event) error {
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (at, kind, session, peer, conn_id, window_id, label, action, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		at.Format(time.RFC3339Nano), string(ev.Kind), ev.Session, ev.Peer,
		ev.ConnID, ev.WindowID, ev.Label, ev.Action, ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("sqlitesink: insert event: %w", err)
	}
	return nil
}

// KindCount is the number of events of one kind in a session.
type KindCount struct {
	Kind  sink.EventKind
	Count int
}

// CountByKind aggregates the events recorded for a session.
func (s *Store) CountByKind(ctx context.Context, session string) ([]KindCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM events WHERE session = ? GROUP BY kind ORDER BY kind`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KindCount
	for rows.Next() {
		var kc KindCount
		var kind string
		if err := rows.Scan(&kind, &kc.Count); err != nil {
			return nil, err
		}
		kc.Kind = sink.EventKind(kind)
		out = append(out, kc)
	}
	return out, rows.Err()
}

// LoadWindowCSV returns the stored CSV text of one window.
func (s *Store) LoadWindowCSV(ctx context.Context, session string, connID, windowID int) (string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM windows WHERE session = ? AND conn_id = ? AND window_id = ?`,
		session, connID, windowID).Scan(&data)
	if err != nil {
		return "", err
	}
	return data, nil
}

var _ sink.Sink = (*Store)(nil)
