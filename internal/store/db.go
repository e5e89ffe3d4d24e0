package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite database holding entity snapshots, match scores,
// outreach cycles, contact history and the per-company email quota.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	id            TEXT PRIMARY KEY,
	full_name     TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	industries    TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	work_policy   TEXT NOT NULL DEFAULT '',
	skills        TEXT NOT NULL DEFAULT '',
	bio           TEXT NOT NULL DEFAULT '',
	requires_visa INTEGER NOT NULL DEFAULT 0,
	start_date    TEXT NOT NULL DEFAULT '',
	updated_at    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS roles (
	id              TEXT PRIMARY KEY,
	company_id      TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	industries      TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	work_policy     TEXT NOT NULL DEFAULT '',
	required_skills TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'open',
	updated_at      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS companies (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS match_scores (
	candidate_id TEXT NOT NULL,
	role_id      TEXT NOT NULL,
	total        REAL NOT NULL,
	industry     REAL NOT NULL,
	location     REAL NOT NULL,
	work_policy  REAL NOT NULL,
	skill        REAL NOT NULL,
	computed_at  TEXT NOT NULL,
	PRIMARY KEY (candidate_id, role_id)
);

CREATE TABLE IF NOT EXISTS outreach_cycles (
	id            TEXT PRIMARY KEY,
	candidate_id  TEXT NOT NULL,
	role_id       TEXT NOT NULL,
	company_id    TEXT NOT NULL,
	state         TEXT NOT NULL,
	urgent        INTEGER NOT NULL DEFAULT 0,
	thread_id     TEXT NOT NULL DEFAULT '',
	send_attempts INTEGER NOT NULL DEFAULT 0,
	t0            TEXT,
	t1            TEXT,
	t2            TEXT,
	t3            TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_open_cycle_per_pair
	ON outreach_cycles (candidate_id, role_id)
	WHERE state NOT IN ('RESPONDED', 'EXHAUSTED', 'FAILED');

CREATE TABLE IF NOT EXISTS contact_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_id TEXT NOT NULL,
	role_id      TEXT NOT NULL,
	stage        TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	message_id   TEXT NOT NULL DEFAULT '',
	sent_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_pair ON contact_history (candidate_id, role_id);

CREATE TABLE IF NOT EXISTS email_quota (
	company_id TEXT NOT NULL,
	week       TEXT NOT NULL,
	count      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (company_id, week)
);
`

// Open opens (creating if needed) the sqlite database at path and bootstraps
// the schema. The pool is restricted to a single connection: sqlite wants one
// writer, and the campaign relies on it to serialize quota reservations.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", v, err)
	}
	return t, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
