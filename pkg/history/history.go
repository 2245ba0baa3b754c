// Package history keeps a local record of export jobs in a SQLite database
// under the loupe state directory. It is bookkeeping about invocations of
// this tool, not a cache of remote records.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/loupelabs/loupe/pkg/config"
)

// Job statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job is one recorded export invocation.
type Job struct {
	ID        string
	Entity    string // "requests" or "sessions"
	Format    string
	Output    string
	Requested int
	Exported  int
	Status    string
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Store wraps the history database.
type Store struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS export_jobs (
	id TEXT PRIMARY KEY,
	entity TEXT NOT NULL,
	format TEXT NOT NULL,
	output TEXT NOT NULL,
	requested INTEGER NOT NULL,
	exported INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
`

// Open opens (creating if needed) the history database in the loupe state
// directory.
func Open() (*Store, error) {
	dir, err := config.StateDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return OpenPath(filepath.Join(dir, "history.db"))
}

// OpenPath opens a history database at an explicit path.
func OpenPath(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Record inserts a finished job. The job ID is assigned here and returned.
func (s *Store) Record(ctx context.Context, job Job) (string, error) {
	job.ID = uuid.NewString()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO export_jobs (id, entity, format, output, requested, exported, status, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Entity, job.Format, job.Output, job.Requested, job.Exported,
		job.Status, job.Error, job.StartedAt.UTC().Format(time.RFC3339), job.Duration.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record export job: %w", err)
	}
	return job.ID, nil
}

// Recent returns the most recent jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, entity, format, output, requested, exported, status, error, started_at, duration_ms
		 FROM export_jobs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		var startedAt string
		var durationMS int64
		if err := rows.Scan(&job.ID, &job.Entity, &job.Format, &job.Output,
			&job.Requested, &job.Exported, &job.Status, &job.Error, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		job.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		job.Duration = time.Duration(durationMS) * time.Millisecond
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return jobs, nil
}

// Clear deletes all recorded jobs and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM export_jobs`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
