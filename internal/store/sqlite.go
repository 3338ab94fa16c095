// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides thread metadata persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// busy_timeout is set in the DSN so it applies to every pooled
	// connection; without it a concurrent writer fails immediately with
	// SQLITE_BUSY instead of waiting for the lock.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			agent_type TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			last_user_message TEXT NOT NULL DEFAULT '',
			last_agent_message TEXT NOT NULL DEFAULT '',
			last_client_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_threads_agent_updated
			ON threads(agent_type, updated_at);

		CREATE TABLE IF NOT EXISTS thread_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			job_id TEXT,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,

			CHECK (event_type IN ('user_message', 'agent_event', 'job_complete', 'error'))
		);

		CREATE INDEX IF NOT EXISTS idx_thread_events_thread
			ON thread_events(thread_id, seq);

		CREATE TABLE IF NOT EXISTS dashboards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS dashboard_plots (
			id TEXT PRIMARY KEY,
			dashboard_id TEXT NOT NULL REFERENCES dashboards(id) ON DELETE CASCADE,
			title TEXT NOT NULL DEFAULT '',
			chart_spec TEXT NOT NULL,
			chart_option TEXT,
			agent_type TEXT,
			source_thread_id TEXT,
			layout_x INTEGER NOT NULL DEFAULT 0,
			layout_y INTEGER NOT NULL DEFAULT 0,
			layout_w INTEGER NOT NULL DEFAULT 4,
			layout_h INTEGER NOT NULL DEFAULT 3,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_plots_dashboard
			ON dashboard_plots(dashboard_id, created_at);

		CREATE TABLE IF NOT EXISTS knowledge_entries (
			id TEXT PRIMARY KEY,
			agent_type TEXT,
			thread_id TEXT,
			message_id TEXT,
			sql_text TEXT NOT NULL,
			sql_hash TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_knowledge_agent
			ON knowledge_entries(agent_type, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string // Query to check if migration is needed
		apply  string // Query to apply the migration
		column string // Column name for logging
		table  string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('threads') WHERE name = 'last_client_id'`,
			apply:  `ALTER TABLE threads ADD COLUMN last_client_id TEXT NOT NULL DEFAULT ''`,
			column: "last_client_id",
			table:  "threads",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('dashboard_plots') WHERE name = 'source_thread_id'`,
			apply:  `ALTER TABLE dashboard_plots ADD COLUMN source_thread_id TEXT`,
			column: "source_thread_id",
			table:  "dashboard_plots",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			// Column already exists, skip
			continue
		}
		// Column doesn't exist, apply migration
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// UpsertThread inserts or updates thread metadata keyed by canonical id.
// Title is sticky: the first non-empty value wins and later writes never
// replace it. Other fields take the latest non-empty value. UpdatedAt is
// bumped on every call.
func (s *SQLiteStore) UpsertThread(ctx context.Context, thread *Thread) error {
	now := time.Now().UTC()
	createdAt := thread.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := thread.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	query := `
		INSERT INTO threads (id, agent_type, title, last_user_message, last_agent_message, last_client_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agent_type = COALESCE(NULLIF(excluded.agent_type, ''), threads.agent_type),
			title = CASE WHEN threads.title = '' THEN excluded.title ELSE threads.title END,
			last_user_message = COALESCE(NULLIF(excluded.last_user_message, ''), threads.last_user_message),
			last_agent_message = COALESCE(NULLIF(excluded.last_agent_message, ''), threads.last_agent_message),
			last_client_id = COALESCE(NULLIF(excluded.last_client_id, ''), threads.last_client_id),
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		thread.ID,
		thread.AgentType,
		thread.Title,
		thread.LastUserMessage,
		thread.LastAgentMessage,
		thread.LastClientID,
		createdAt.Format(time.RFC3339),
		updatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting thread: %w", err)
	}

	s.logger.Debug("upserted thread", "id", thread.ID, "agent_type", thread.AgentType)
	return nil
}

// GetThread retrieves a thread by canonical ID.
// Returns ErrNotFound if the thread doesn't exist.
func (s *SQLiteStore) GetThread(ctx context.Context, id string) (*Thread, error) {
	query := `
		SELECT id, agent_type, title, last_user_message, last_agent_message, last_client_id, created_at, updated_at
		FROM threads
		WHERE id = ?
	`

	row := s.db.QueryRowContext(ctx, query, id)
	thread, err := scanThread(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}
	return thread, nil
}

// ListThreads retrieves threads ordered by most recent activity.
// An empty agentType lists threads for all agent types.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListThreads(ctx context.Context, agentType string, limit int) ([]*Thread, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, agent_type, title, last_user_message, last_agent_message, last_client_id, created_at, updated_at
		FROM threads
	`
	args := []any{}
	if agentType != "" {
		query += ` WHERE agent_type = ?`
		args = append(args, agentType)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		thread, err := scanThread(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning thread row: %w", err)
		}
		threads = append(threads, thread)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thread rows: %w", err)
	}

	return threads, nil
}

// DeleteThread removes a thread and its event log.
// Returns ErrNotFound if the thread doesn't exist.
func (s *SQLiteStore) DeleteThread(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_events WHERE thread_id = ?`, id); err != nil {
		return fmt.Errorf("deleting thread events: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing thread delete: %w", err)
	}

	s.logger.Debug("deleted thread", "id", id)
	return nil
}

// scanThread scans one threads row via the given scan func
func scanThread(scan func(dest ...any) error) (*Thread, error) {
	var thread Thread
	var createdAtStr, updatedAtStr string

	if err := scan(
		&thread.ID,
		&thread.AgentType,
		&thread.Title,
		&thread.LastUserMessage,
		&thread.LastAgentMessage,
		&thread.LastClientID,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}

	var err error
	thread.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	thread.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &thread, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
