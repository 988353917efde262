package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ShopAssist/internal/flow"
	"github.com/BTreeMap/ShopAssist/internal/models"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// chatSession is one browser conversation: an engine plus the navigation it
// requested but the browser has not yet performed.
type chatSession struct {
	id     string
	engine *flow.Engine
	nav    *pendingNavigator
}

// pendingNavigator holds the most recent navigation request until the next response.
type pendingNavigator struct {
	mu   sync.Mutex
	path string
}

func (n *pendingNavigator) NavigateTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
}

func (n *pendingNavigator) take() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	path := n.path
	n.path = ""
	return path
}

// sessionView is the JSON shape returned for every session request.
type sessionView struct {
	flow.Snapshot
	NavigateTo string `json:"navigate_to,omitempty"`
}

func (s *chatSession) view() sessionView {
	return sessionView{Snapshot: s.engine.Snapshot(), NavigateTo: s.nav.take()}
}

// SessionManager owns the live chat sessions. Sessions expire after ttl without
// activity; expiry closes the engine so a pending lookup result is dropped.
type SessionManager struct {
	cache    *gocache.Cache
	ttl      time.Duration
	registry *flow.Registry
	deps     flow.Dependencies
	engOpts  []flow.Option
}

// NewSessionManager creates a session manager. deps.Navigator is ignored; every
// session gets its own navigator.
func NewSessionManager(registry *flow.Registry, deps flow.Dependencies, ttl time.Duration, engOpts ...flow.Option) *SessionManager {
	c := gocache.New(ttl, ttl/2)
	c.OnEvicted(func(id string, v interface{}) {
		if sess, ok := v.(*chatSession); ok {
			slog.Info("SessionManager: session evicted", "sessionID", id)
			sess.engine.Close(context.Background())
		}
	})
	return &SessionManager{
		cache:    c,
		ttl:      ttl,
		registry: registry,
		deps:     deps,
		engOpts:  engOpts,
	}
}

// Create starts a new session and opens its widget.
func (m *SessionManager) Create(ctx context.Context) (*chatSession, error) {
	id := uuid.NewString()
	nav := &pendingNavigator{}
	deps := m.deps
	deps.Navigator = nav

	opts := append([]flow.Option{flow.WithSessionID(id)}, m.engOpts...)
	engine, err := flow.NewEngine(m.registry, deps, opts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	engine.Open(ctx)

	sess := &chatSession{id: id, engine: engine, nav: nav}
	m.cache.Set(id, sess, gocache.DefaultExpiration)
	slog.Info("SessionManager: session created", "sessionID", id, "active", m.cache.ItemCount())
	return sess, nil
}

// Get returns a live session and extends its lifetime.
func (m *SessionManager) Get(id string) (*chatSession, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrSessionNotFound)
	}
	sess := v.(*chatSession)
	m.cache.Set(id, sess, gocache.DefaultExpiration)
	return sess, nil
}

// Delete ends a session. The engine is closed by the eviction hook.
func (m *SessionManager) Delete(id string) error {
	if _, ok := m.cache.Get(id); !ok {
		return fmt.Errorf("session %s: %w", id, models.ErrSessionNotFound)
	}
	m.cache.Delete(id)
	return nil
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	return m.cache.ItemCount()
}

// CloseAll ends every session, e.g. on shutdown. Flush is not used because it
// skips the eviction hook.
func (m *SessionManager) CloseAll() {
	for id := range m.cache.Items() {
		m.cache.Delete(id)
	}
}
