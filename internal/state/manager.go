// Package state persists run history and the audit trail of
// destructive actions in a local sqlite database.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Manager handles state persistence: one record per run, one audit
// event per successful destructive action.
type Manager struct {
	db *sql.DB
}

// RunRecord represents a single reconciliation run on this host
type RunRecord struct {
	ID             int64
	Mode           string // "sync" or "purge"
	StartTime      time.Time
	EndTime        time.Time
	Status         string // "success", "failed", "partial"
	EntriesChecked int
	ContentChanged int
	MetaChanged    int
	Deleted        int
	Error          string
}

// AuditEvent is one persistent audit line for a destructive action
type AuditEvent struct {
	ID        int64
	Timestamp time.Time
	Action    string
	Path      string
}

// NewManager creates a new state manager
func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "confsync.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Limit connection pool to prevent "database is locked" errors
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	manager := &Manager{db: db}

	if err := manager.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return manager, nil
}

// initSchema creates the database schema
func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mode TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		entries_checked INTEGER DEFAULT 0,
		content_changed INTEGER DEFAULT 0,
		meta_changed INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_mode_time ON runs(mode, start_time DESC);

	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_events(timestamp DESC);
	`

	_, err := m.db.Exec(schema)
	return err
}

// SaveRun records a reconciliation run
func (m *Manager) SaveRun(record RunRecord) error {
	if record.Status != "success" && record.Status != "failed" && record.Status != "partial" {
		return fmt.Errorf("invalid status: %s (must be 'success', 'failed', or 'partial')", record.Status)
	}

	query := `
		INSERT INTO runs (mode, start_time, end_time, status, entries_checked,
			content_changed, meta_changed, deleted, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := m.db.Exec(query,
		record.Mode,
		record.StartTime,
		record.EndTime,
		record.Status,
		record.EntriesChecked,
		record.ContentChanged,
		record.MetaChanged,
		record.Deleted,
		record.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	return nil
}

// GetHistory retrieves recent run records. An empty mode matches all
// modes.
func (m *Manager) GetHistory(mode string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT id, mode, start_time, end_time, status, entries_checked,
			content_changed, meta_changed, deleted, error
		FROM runs
		WHERE (? = '' OR mode = ?)
		ORDER BY start_time DESC
		LIMIT ?
	`

	rows, err := m.db.Query(query, mode, mode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		err := rows.Scan(&r.ID, &r.Mode, &r.StartTime, &r.EndTime, &r.Status,
			&r.EntriesChecked, &r.ContentChanged, &r.MetaChanged, &r.Deleted, &r.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// RecordEvent appends one audit event. Implements report.AuditSink.
func (m *Manager) RecordEvent(action, path string) error {
	query := `INSERT INTO audit_events (timestamp, action, path) VALUES (?, ?, ?)`

	if _, err := m.db.Exec(query, time.Now(), action, path); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// GetAuditEvents retrieves the most recent audit events
func (m *Manager) GetAuditEvents(limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT id, timestamp, action, path
		FROM audit_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := m.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.Path); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}
