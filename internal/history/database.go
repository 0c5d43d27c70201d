// Package history archives finished runs and their diagnostics in SQLite.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aidanlsb/gfxcheck/internal/progress"
	"github.com/aidanlsb/gfxcheck/internal/report"
)

var (
	// ErrRunNotFound indicates no archived run matches the requested ID.
	ErrRunNotFound = errors.New("run not found in history")
	// ErrAmbiguousRun indicates an ID prefix matches more than one run.
	ErrAmbiguousRun = errors.New("run ID prefix is ambiguous")
)

// CurrentDBVersion is the current database schema version.
const CurrentDBVersion = 1

// Database is the SQLite database handle.
type Database struct {
	db *sql.DB
}

// Run summarizes one archived run.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	SettingsPath string
	Locations    int
	RecordFiles  int
	Records      int
	Counts       map[report.Severity]int
}

// Open opens or creates the database at path.
func Open(path string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Database{db: db}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// OpenInMemory opens an in-memory database (for testing).
func OpenInMemory() (*Database, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	d := &Database{db: db}
	if err := d.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

// initialize creates the database schema.
func (d *Database) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA foreign_keys = ON;

		-- Metadata table for version tracking
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,     -- Unix seconds
			finished_at INTEGER NOT NULL,
			settings_path TEXT NOT NULL DEFAULT '',
			locations INTEGER NOT NULL DEFAULT 0,
			record_files INTEGER NOT NULL DEFAULT 0,
			records INTEGER NOT NULL DEFAULT 0,
			critical INTEGER NOT NULL DEFAULT 0,
			important INTEGER NOT NULL DEFAULT 0,
			warning INTEGER NOT NULL DEFAULT 0,
			info INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS diagnostics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,            -- Order within the run
			severity TEXT NOT NULL,
			path TEXT NOT NULL,
			message TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
		CREATE INDEX IF NOT EXISTS idx_diagnostics_run ON diagnostics(run_id, seq);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	_, err := d.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", CurrentDBVersion))
	if err != nil {
		return fmt.Errorf("failed to set database version: %w", err)
	}
	return nil
}

// RecordRun archives a finished run. Archiving the same run again replaces
// the earlier entry.
func (d *Database) RecordRun(state *progress.State, finishedAt time.Time, settingsPath string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM diagnostics WHERE run_id = ?`, state.RunID); err != nil {
		return fmt.Errorf("failed to clear diagnostics: %w", err)
	}

	stats := state.Stats()
	counts := state.Log.Counts()
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs
			(id, started_at, finished_at, settings_path, locations, record_files, records,
			 critical, important, warning, info)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.RunID, state.StartedAt.Unix(), finishedAt.Unix(), settingsPath,
		stats.Locations, stats.Documents, stats.Records,
		counts[report.Critical], counts[report.Important], counts[report.Warning], counts[report.Info],
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO diagnostics (run_id, seq, severity, path, message) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare diagnostics insert: %w", err)
	}
	defer stmt.Close()

	for i, diag := range state.Log.Diagnostics {
		if _, err := stmt.Exec(state.RunID, i, diag.Severity.String(), diag.Path, diag.Message); err != nil {
			return fmt.Errorf("failed to insert diagnostic: %w", err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, started_at, finished_at, settings_path, locations, record_files, records,
	critical, important, warning, info`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var started, finished int64
	var critical, important, warning, info int
	if err := row.Scan(&r.ID, &started, &finished, &r.SettingsPath, &r.Locations, &r.RecordFiles, &r.Records,
		&critical, &important, &warning, &info); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(started, 0)
	r.FinishedAt = time.Unix(finished, 0)
	r.Counts = map[report.Severity]int{
		report.Critical:  critical,
		report.Important: important,
		report.Warning:   warning,
		report.Info:      info,
	}
	return &r, nil
}

// Runs returns archived runs, newest first. A limit of zero or less returns
// every run.
func (d *Database) Runs(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns the run whose ID is id or starts with id.
func (d *Database) Run(id string) (*Run, error) {
	rows, err := d.db.Query(`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? || '%' ORDER BY id = ? DESC LIMIT 2`,
		id, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case found[0].ID == id, len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, id)
	}
}

// Diagnostics returns the diagnostics of a run in the order they were raised.
func (d *Database) Diagnostics(runID string) (*report.Log, error) {
	rows, err := d.db.Query(`SELECT severity, path, message FROM diagnostics WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	log := &report.Log{}
	for rows.Next() {
		var sev, path, msg string
		if err := rows.Scan(&sev, &path, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		severity, err := report.ParseSeverity(sev)
		if err != nil {
			return nil, err
		}
		log.Report(report.Diagnostic{Severity: severity, Path: path, Message: msg})
	}
	return log, rows.Err()
}

// Prune deletes all but the newest keep runs. It returns how many runs were
// deleted.
func (d *Database) Prune(keep int) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`DELETE FROM diagnostics WHERE run_id NOT IN (SELECT id FROM runs)`); err != nil {
		return 0, fmt.Errorf("failed to prune diagnostics: %w", err)
	}
	return int(n), tx.Commit()
}
