package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sisu-notifier/internal/models"
	"sisu-notifier/internal/pipeline"
)

// SQLiteStore implements RunStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-based run journal.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One row per pipeline run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		success INTEGER NOT NULL,
		clients_checked INTEGER NOT NULL,
		match_count INTEGER NOT NULL,
		notifications_sent INTEGER NOT NULL,
		delivery TEXT NOT NULL,
		subject TEXT,
		error TEXT,
		matches TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRun appends a finished run.
func (s *SQLiteStore) RecordRun(ctx context.Context, res pipeline.Result) error {
	matches := res.Matches
	if matches == nil {
		matches = []models.ClosingMatch{}
	}
	matchesJSON, err := json.Marshal(matches)
	if err != nil {
		return fmt.Errorf("marshaling matches: %w", err)
	}

	query := `
		INSERT INTO runs (id, started_at, finished_at, success, clients_checked, match_count,
			notifications_sent, delivery, subject, error, matches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		res.RunID,
		res.StartedAt.UTC(),
		res.FinishedAt.UTC(),
		boolToInt(res.Success),
		res.ClientsChecked,
		len(matches),
		res.NotificationsSent,
		string(res.Delivery),
		res.Subject,
		res.Error,
		string(matchesJSON),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", res.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, started_at, finished_at, success, clients_checked, match_count,
			notifications_sent, delivery, subject, error, matches
		FROM runs
		ORDER BY started_at DESC, created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run, or nil when the id is unknown.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, started_at, finished_at, success, clients_checked, match_count,
			notifications_sent, delivery, subject, error, matches
		FROM runs
		WHERE id = ?
	`
	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var success int
	var subject, errText, matches sql.NullString

	if err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&success,
		&run.ClientsChecked,
		&run.MatchCount,
		&run.NotificationsSent,
		&run.Delivery,
		&subject,
		&errText,
		&matches,
	); err != nil {
		return nil, err
	}

	run.Success = success == 1
	run.Subject = subject.String
	run.Error = errText.String
	run.Matches = []models.ClosingMatch{}
	if matches.Valid && matches.String != "" {
		if err := json.Unmarshal([]byte(matches.String), &run.Matches); err != nil {
			return nil, fmt.Errorf("decoding matches of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
