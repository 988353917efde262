// Package store provides storage backends for ShopAssist.
//
// This file implements an SQLite-backed history store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/ShopAssist/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, entry models.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		entry.SessionID, string(entry.Role), entry.Content, entry.CreatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore AppendHistory failed", "error", err, "sessionID", entry.SessionID)
		return fmt.Errorf("failed to insert history for session %s: %w", entry.SessionID, err)
	}
	slog.Debug("SQLiteStore AppendHistory succeeded", "sessionID", entry.SessionID, "role", entry.Role)
	return nil
}

func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, role, content, created_at FROM chat_history WHERE session_id = ? ORDER BY created_at, id`,
		sessionID)
	if err != nil {
		slog.Error("SQLiteStore GetHistory query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

func (s *SQLiteStore) DeleteHistory(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE session_id = ?`, sessionID); err != nil {
		slog.Error("SQLiteStore DeleteHistory failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete history for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		slog.Error("SQLiteStore PurgeHistoryBefore failed", "error", err, "cutoff", cutoff)
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

// scanHistory reads history rows in query order.
func scanHistory(rows *sql.Rows) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var role string
		if err := rows.Scan(&e.SessionID, &role, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Role = models.HistoryRole(role)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return entries, nil
}
