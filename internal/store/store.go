// Package store provides storage backends for ShopAssist.
//
// It persists the flattened interaction history of chat sessions. An in-memory
// store is used when no database DSN is configured.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/models"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store persists chat history entries.
type Store interface {
	AppendHistory(ctx context.Context, entry models.HistoryEntry) error
	GetHistory(ctx context.Context, sessionID string) ([]models.HistoryEntry, error)
	DeleteHistory(ctx context.Context, sessionID string) error
	// PurgeHistoryBefore deletes entries created before cutoff across all sessions
	// and returns how many were removed.
	PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Opts holds configuration for the store backends.
type Opts struct {
	Driver string
	DSN    string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN selects the SQLite backend with the given database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.Driver = DriverSQLite
		o.DSN = dsn
	}
}

// WithPostgresDSN selects the PostgreSQL backend with the given connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.Driver = DriverPostgres
		o.DSN = dsn
	}
}

// DetectDSNType reports whether dsn is a PostgreSQL connection string or a SQLite path.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	// key=value form, e.g. "host=localhost dbname=shop sslmode=disable"
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// New creates the store selected by opts. Without a DSN the in-memory store is used.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		slog.Info("No database DSN configured, using in-memory history store")
		return NewInMemoryStore(), nil
	case cfg.Driver == DriverPostgres:
		return NewPostgresStore(opts...)
	case cfg.Driver == DriverSQLite:
		return NewSQLiteStore(opts...)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// InMemoryStore keeps history in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	history map[string][]models.HistoryEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{history: make(map[string][]models.HistoryEntry)}
}

func (s *InMemoryStore) AppendHistory(ctx context.Context, entry models.HistoryEntry) error {
	if entry.SessionID == "" {
		return fmt.Errorf("history entry has no session id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entry.SessionID] = append(s.history[entry.SessionID], entry)
	return nil
}

func (s *InMemoryStore) GetHistory(ctx context.Context, sessionID string) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.HistoryEntry(nil), s.history[sessionID]...), nil
}

func (s *InMemoryStore) DeleteHistory(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, sessionID)
	return nil
}

func (s *InMemoryStore) PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, entries := range s.history {
		kept := entries[:0]
		for _, e := range entries {
			if e.CreatedAt.Before(cutoff) {
				purged++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.history, id)
		} else {
			s.history[id] = kept
		}
	}
	return purged, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
