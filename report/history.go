package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// History records every per-device result of every run in SQLite, so a
// device's onboarding and discovery track record survives the CSV files.
type History struct {
	conn *sql.DB
	path string
}

// Entry is one per-device result.
type Entry struct {
	RunID      string
	Tool       string
	Host       string
	DeviceType string
	Status     string
	Detail     string
	At         time.Time
}

// OpenHistory opens or creates the history database at path.
func OpenHistory(path string) (*History, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure history: %w", err)
	}
	h := &History{conn: conn, path: path}
	if err := h.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return h, nil
}

func (h *History) Close() error {
	return h.conn.Close()
}

func (h *History) Path() string {
	return h.path
}

func (h *History) migrate() error {
	_, err := h.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var version int
	if err := h.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return err
	}

	migrations := []string{migrationV1}
	for i, migration := range migrations {
		v := i + 1
		if v <= version {
			continue
		}
		tx, err := h.conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migration); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", v, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

const migrationV1 = `
CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL,
    tool TEXT NOT NULL,
    host TEXT NOT NULL,
    device_type TEXT,
    status TEXT NOT NULL,
    detail TEXT,
    at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_host ON results(host);
CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
`

// Record stores one result.
func (h *History) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := h.conn.ExecContext(ctx, `
		INSERT INTO results (run_id, tool, host, device_type, status, detail, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, e.Tool, e.Host, e.DeviceType, e.Status, e.Detail, e.At.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record result for %s: %w", e.Host, err)
	}
	return nil
}

// ForHost returns the latest results for host, newest first.
func (h *History) ForHost(ctx context.Context, host string, limit int) ([]Entry, error) {
	return h.query(ctx, `WHERE host = ? ORDER BY at DESC, id DESC LIMIT ?`, host, limitOr(limit))
}

// ForRun returns every result of one run in the order recorded.
func (h *History) ForRun(ctx context.Context, runID string) ([]Entry, error) {
	return h.query(ctx, `WHERE run_id = ? ORDER BY id`, runID)
}

func limitOr(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func (h *History) query(ctx context.Context, where string, args ...any) ([]Entry, error) {
	rows, err := h.conn.QueryContext(ctx, `
		SELECT run_id, tool, host, COALESCE(device_type, ''), status, COALESCE(detail, ''), at
		FROM results `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.RunID, &e.Tool, &e.Host, &e.DeviceType, &e.Status, &e.Detail, &at); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
