// Package store provides storage backends for ShopAssist.
//
// This file implements a PostgreSQL-backed history store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/ShopAssist/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, entry models.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (session_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
		entry.SessionID, string(entry.Role), entry.Content, entry.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AppendHistory failed", "error", err, "sessionID", entry.SessionID)
		return fmt.Errorf("failed to insert history for session %s: %w", entry.SessionID, err)
	}
	slog.Debug("PostgresStore AppendHistory succeeded", "sessionID", entry.SessionID, "role", entry.Role)
	return nil
}

func (s *PostgresStore) GetHistory(ctx context.Context, sessionID string) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, role, content, created_at FROM chat_history WHERE session_id = $1 ORDER BY created_at, id`,
		sessionID)
	if err != nil {
		slog.Error("PostgresStore GetHistory query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

func (s *PostgresStore) DeleteHistory(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE session_id = $1`, sessionID); err != nil {
		slog.Error("PostgresStore DeleteHistory failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete history for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *PostgresStore) PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		slog.Error("PostgresStore PurgeHistoryBefore failed", "error", err, "cutoff", cutoff)
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
