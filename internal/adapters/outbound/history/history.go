package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openkraft/keeper/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	ts             INTEGER NOT NULL,
	commit_hash    TEXT NOT NULL DEFAULT '',
	score          INTEGER NOT NULL,
	grade          TEXT NOT NULL,
	fixes_applied  INTEGER NOT NULL,
	needs_approval INTEGER NOT NULL,
	build_passed   INTEGER NOT NULL,
	pr_url         TEXT NOT NULL DEFAULT '',
	errors         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_ts ON runs(ts);
CREATE TABLE IF NOT EXISTS snapshots (
	run_id  TEXT PRIMARY KEY,
	date    TEXT NOT NULL,
	score   INTEGER NOT NULL,
	payload TEXT NOT NULL
);
`

// Store persists run summaries and metric snapshots in a single SQLite file.
// It implements domain.RunHistory and domain.MetricsSink.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. Relative paths are
// resolved against projectPath. ":memory:" opens a private in-memory store.
func Open(projectPath, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if !filepath.IsAbs(path) {
			dsn = filepath.Join(projectPath, path)
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("creating history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save inserts or replaces the entry with the same run id.
func (s *Store) Save(ctx context.Context, e domain.RunEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run_id, ts, commit_hash, score, grade, fixes_applied, needs_approval, build_passed, pr_url, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Timestamp.UnixNano(), e.CommitHash, e.Score, e.Grade,
		e.FixesApplied, e.NeedsApproval, boolInt(e.BuildPassed), e.PRURL, e.Errors)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", e.RunID, err)
	}
	return nil
}

// List returns the most recent runs first. limit <= 0 returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]domain.RunEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, ts, commit_hash, score, grade, fixes_applied, needs_approval, build_passed, pr_url, errors
		FROM runs ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var entries []domain.RunEntry
	for rows.Next() {
		var (
			e     domain.RunEntry
			ts    int64
			built int
		)
		if err := rows.Scan(&e.RunID, &ts, &e.CommitHash, &e.Score, &e.Grade,
			&e.FixesApplied, &e.NeedsApproval, &built, &e.PRURL, &e.Errors); err != nil {
			return nil, fmt.Errorf("reading run: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.BuildPassed = built != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Record stores the metrics snapshot of a run.
func (s *Store) Record(ctx context.Context, snap domain.MetricsSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (run_id, date, score, payload) VALUES (?, ?, ?, ?)`,
		snap.RunID, snap.Date, snap.Score, string(payload))
	if err != nil {
		return fmt.Errorf("recording snapshot %s: %w", snap.RunID, err)
	}
	return nil
}

// Snapshots returns stored snapshots, oldest date first.
func (s *Store) Snapshots(ctx context.Context) ([]domain.MetricsSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM snapshots ORDER BY date, rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.MetricsSnapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var snap domain.MetricsSnapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("decoding snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
