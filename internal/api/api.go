// Package api provides the HTTP chat API and the main server logic for ShopAssist.
//
// It exposes one REST resource per chat session. Every response carries the
// session snapshot so the storefront widget can re-render from it.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/config"
	"github.com/BTreeMap/ShopAssist/internal/flow"
	"github.com/BTreeMap/ShopAssist/internal/orders"
	"github.com/BTreeMap/ShopAssist/internal/scheduler"
	"github.com/BTreeMap/ShopAssist/internal/store"
	"github.com/gorilla/mux"
)

// Server configuration constants
const (
	// DefaultServerAddress is the default HTTP server address
	DefaultServerAddress = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr             string
	SessionTTL       time.Duration
	LookupTimeout    time.Duration
	RetainHistory    bool
	HistoryRetention time.Duration
	PurgeSchedule    string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithSessionTTL sets how long an idle chat session is kept.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.SessionTTL = ttl }
}

// WithLookupTimeout sets the per-lookup timeout of every session engine.
func WithLookupTimeout(d time.Duration) Option {
	return func(o *Opts) { o.LookupTimeout = d }
}

// WithRetainHistory keeps session history across resets.
func WithRetainHistory(retain bool) Option {
	return func(o *Opts) { o.RetainHistory = retain }
}

// WithHistoryRetention purges persisted history older than retention on the given
// cron schedule. A zero retention disables the purge job.
func WithHistoryRetention(retention time.Duration, schedule string) Option {
	return func(o *Opts) {
		o.HistoryRetention = retention
		o.PurgeSchedule = schedule
	}
}

// Server is the chat API server.
type Server struct {
	opts     Opts
	st       store.Store
	sessions *SessionManager
	router   *mux.Router
}

// NewServer wires the chat routes over registry, lookup and history store.
func NewServer(registry *flow.Registry, lookup flow.OrderLookup, st store.Store, opts ...Option) *Server {
	cfg := Opts{
		Addr:          DefaultServerAddress,
		SessionTTL:    config.DefaultSessionTTL,
		LookupTimeout: flow.DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	engOpts := []flow.Option{flow.WithLookupTimeout(cfg.LookupTimeout)}
	if cfg.RetainHistory {
		engOpts = append(engOpts, flow.WithRetainHistory())
	}
	deps := flow.Dependencies{OrderLookup: lookup, HistorySink: st}

	s := &Server{
		opts:     cfg,
		st:       st,
		sessions: NewSessionManager(registry, deps, cfg.SessionTTL, engOpts...),
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)

	r.HandleFunc("/chat/sessions", s.createSessionHandler).Methods(http.MethodPost)
	r.HandleFunc("/chat/sessions/{id}", s.getSessionHandler).Methods(http.MethodGet)
	r.HandleFunc("/chat/sessions/{id}", s.deleteSessionHandler).Methods(http.MethodDelete)
	r.HandleFunc("/chat/sessions/{id}/options", s.selectOptionHandler).Methods(http.MethodPost)
	r.HandleFunc("/chat/sessions/{id}/input", s.submitInputHandler).Methods(http.MethodPost)
	r.HandleFunc("/chat/sessions/{id}/open", s.openHandler).Methods(http.MethodPost)
	r.HandleFunc("/chat/sessions/{id}/close", s.closeHandler).Methods(http.MethodPost)
	r.HandleFunc("/chat/sessions/{id}/reset", s.resetHandler).Methods(http.MethodPost)
	r.HandleFunc("/chat/sessions/{id}/history", s.historyHandler).Methods(http.MethodGet)

	r.Use(loggingMiddleware)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// Run builds every module from its options and serves the chat API until SIGINT or SIGTERM.
func Run(storeOpts []store.Option, orderOpts []orders.Option, settings flow.StoreSettings, apiOpts []Option) error {
	slog.Debug("api.Run: starting", "store_opts", len(storeOpts), "order_opts", len(orderOpts), "api_opts", len(apiOpts))

	registry, err := flow.LoadRegistry(settings)
	if err != nil {
		return fmt.Errorf("failed to load flow registry: %w", err)
	}
	slog.Info("Flow registry loaded", "steps", len(registry.StepIDs()), "navigation", len(registry.NavigationActions()))

	client, err := orders.NewClient(orderOpts...)
	if err != nil {
		return fmt.Errorf("failed to create order client: %w", err)
	}

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			slog.Error("Failed to close history store", "error", cerr)
		}
	}()

	server := NewServer(registry, client, st, apiOpts...)

	sched := scheduler.NewScheduler()
	if server.opts.HistoryRetention > 0 {
		job := scheduler.HistoryPurgeJob(st, server.opts.HistoryRetention, time.Now)
		if err := sched.AddJob(scheduler.HistoryPurgeJobName, server.opts.PurgeSchedule, job); err != nil {
			return fmt.Errorf("failed to schedule history purge: %w", err)
		}
	}
	sched.Start()

	httpServer := &http.Server{
		Addr:              server.opts.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ShopAssist API listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	server.sessions.CloseAll()
	if err := sched.Stop(shutdownCtx); err != nil {
		slog.Warn("Scheduled jobs did not finish before shutdown", "error", err)
	}
	return nil
}
