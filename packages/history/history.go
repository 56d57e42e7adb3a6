// Package history keeps a SQLite record of finalized runs: one row per run
// and one row per report entry. Response bodies are never stored.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	mismatched  INTEGER NOT NULL,
	errored     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	position       INTEGER NOT NULL,
	test_name      TEXT NOT NULL,
	passed         INTEGER NOT NULL,
	category       TEXT NOT NULL,
	error_kind     TEXT NOT NULL DEFAULT '',
	failure_detail TEXT NOT NULL DEFAULT '',
	method         TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL DEFAULT '',
	status_code    INTEGER NOT NULL DEFAULT 0,
	duration_ms    INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);`

// RunRecord is a stored run summary.
type RunRecord struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	reporter.Summary
}

// Store is a history database. It also serves as a reporter.Observer.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open opens or creates the database at path. "sqlite://" and "sqlite:"
// prefixes are accepted.
func Open(path string) (*Store, error) {
	dsn := dataSource(path)
	if dsn == "" {
		return nil, fmt.Errorf("history database path is empty")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, queryTimeout: 30 * time.Second}, nil
}

func dataSource(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "sqlite://") {
		return strings.TrimPrefix(path, "sqlite://")
	}
	return strings.TrimPrefix(path, "sqlite:")
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Name() string { return "history" }

// Flush stores run in a single transaction.
func (s *Store) Flush(run *reporter.Run) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sum := run.Summary()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, total, passed, mismatched, errored) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Started.UTC(), run.Duration.Milliseconds(), sum.Total, sum.Passed, sum.Mismatch, sum.Errored)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (run_id, position, test_name, passed, category, error_kind, failure_detail, method, url, status_code, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range run.Entries {
		_, err := stmt.ExecContext(ctx, run.ID.String(), i, e.TestName, e.Passed, string(e.Category),
			e.ErrorKind, e.FailureDetail, e.Method, e.URL, e.StatusCode, e.DurationMs())
		if err != nil {
			return fmt.Errorf("insert entry %q: %w", e.TestName, err)
		}
	}

	return tx.Commit()
}

// Runs returns the most recent runs first. A non-positive limit returns all.
func (s *Store) Runs(limit int) ([]RunRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	query := `SELECT id, started_at, duration_ms, total, passed, mismatched, errored FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var ms int64
		if err := rows.Scan(&r.ID, &r.Started, &ms, &r.Total, &r.Passed, &r.Mismatch, &r.Errored); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Entries returns the stored entries of one run in recording order.
func (s *Store) Entries(runID string) ([]reporter.Entry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT test_name, passed, category, error_kind, failure_detail, method, url, status_code, duration_ms
		 FROM entries WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []reporter.Entry
	for rows.Next() {
		var e reporter.Entry
		var category string
		var ms int64
		if err := rows.Scan(&e.TestName, &e.Passed, &category, &e.ErrorKind, &e.FailureDetail,
			&e.Method, &e.URL, &e.StatusCode, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Category = reporter.Category(category)
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
