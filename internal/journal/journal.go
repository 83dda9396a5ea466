// Package journal keeps a local sqlite record of provisioning attempts so
// that "why was this environment rebuilt" is answerable after the fact.
// The journal is advisory: it never gates provisioning.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Attempt statuses.
const (
	StatusStarted   = "started"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Attempt is one provisioning attempt as recorded on disk.
type Attempt struct {
	ID           string
	BuildTag     string
	EnvName      string
	Status       string
	Error        string
	ManifestHash string
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Journal wraps the provisioning history database.
type Journal struct {
	db *sql.DB
}

// Open opens (and creates if needed) the journal database at path and
// ensures the schema exists.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS provision_log (
  id            TEXT PRIMARY KEY,
  build_tag     TEXT NOT NULL,
  env_name      TEXT NOT NULL,
  status        TEXT NOT NULL,
  error         TEXT,
  manifest_hash TEXT,
  started_at    TEXT NOT NULL,
  completed_at  TEXT
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap journal: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS provision_log_started_at_idx ON provision_log(started_at);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap journal index: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin records the start of a provisioning attempt and returns its id.
func (j *Journal) Begin(ctx context.Context, buildTag, envName string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO provision_log (id, build_tag, env_name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, buildTag, envName, StatusStarted, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("record attempt start: %w", err)
	}
	return id, nil
}

// Complete finalizes an attempt. errMsg and manifestHash may be empty.
func (j *Journal) Complete(ctx context.Context, id, status, errMsg, manifestHash string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE provision_log SET status = ?, error = ?, manifest_hash = ?, completed_at = ? WHERE id = ?`,
		status, errMsg, manifestHash, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("record attempt completion: %w", err)
	}
	return nil
}

// Recent returns the most recent attempts, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, build_tag, env_name, status,
		        COALESCE(error, ''), COALESCE(manifest_hash, ''),
		        started_at, COALESCE(completed_at, '')
		 FROM provision_log ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var startedAt, completedAt string
		if err := rows.Scan(&a.ID, &a.BuildTag, &a.EnvName, &a.Status,
			&a.Error, &a.ManifestHash, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		a.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if completedAt != "" {
			a.CompletedAt, _ = time.Parse(time.RFC3339, completedAt)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
