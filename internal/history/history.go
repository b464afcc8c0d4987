// Package history keeps a local audit trail of import runs in SQLite: one
// row per run and one row per processed item. It is observational only; the
// JSON checkpoint document remains the sole authority for idempotency.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	// Import SQLite driver
	_ "modernc.org/sqlite"
)

const dbFileName = "history.db"

// Item actions recorded per processed row.
const (
	ActionCommitted  = "committed"
	ActionLocalSkip  = "local_skip"
	ActionRemoteSkip = "remote_skip"
	ActionFiltered   = "filtered"
	ActionFailed     = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	source TEXT NOT NULL,
	rows_total INTEGER NOT NULL DEFAULT 0,
	imported INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	error TEXT
);

CREATE TABLE IF NOT EXISTS item_outcomes (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	fingerprint TEXT NOT NULL,
	title TEXT NOT NULL,
	action TEXT NOT NULL,
	board_id TEXT,
	post_id TEXT,
	votes INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_item_outcomes_run ON item_outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_item_outcomes_fingerprint ON item_outcomes(fingerprint);
`

// Store is the run-history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database under stateDir.
func Open(stateDir string) (*Store, error) {
	dbPath := filepath.Join(stateDir, dbFileName)
	connStr := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records the start of a run and returns its id.
func (s *Store) BeginRun(ctx context.Context, sourcePath string, rowsTotal int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, source, rows_total) VALUES (?, ?, ?)`,
		time.Now().UTC(), sourcePath, rowsTotal)
	if err != nil {
		return 0, fmt.Errorf("recording run start: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}
	return id, nil
}

// FinishRun records the end of a run and its totals. runErr may be nil.
func (s *Store) FinishRun(ctx context.Context, runID int64, imported, skipped, failed int, runErr error) error {
	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, imported = ?, skipped = ?, failed = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), imported, skipped, failed, errText, runID)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	return nil
}

// Outcome is one processed item within a run.
type Outcome struct {
	Fingerprint string
	Title       string
	Action      string
	BoardID     string
	PostID      string
	Votes       int
	Err         error
}

// RecordItem appends one item outcome to the run.
func (s *Store) RecordItem(ctx context.Context, runID int64, o Outcome) error {
	var errText sql.NullString
	if o.Err != nil {
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item_outcomes (run_id, fingerprint, title, action, board_id, post_id, votes, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Fingerprint, o.Title, o.Action, o.BoardID, o.PostID, o.Votes, errText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording item outcome: %w", err)
	}
	return nil
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Source     string
	RowsTotal  int
	Imported   int
	Skipped    int
	Failed     int
	Error      sql.NullString
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, source, rows_total, imported, skipped, failed, error
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.RowsTotal, &r.Imported, &r.Skipped, &r.Failed, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
