// Package registry maps browser sessions to orchestrators.
//
// The browser holds only a signed cookie with a session id; the orchestrator
// and everything it knows about the upload stay on the server.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
)

const (
	// CookieName is the gorilla session name.
	CookieName = "leaptext"
	idKey      = "id"
)

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 30 * time.Minute

// Factory creates the orchestrator for a new session.
type Factory func() *orchestrator.Orchestrator

type entry struct {
	orch     *orchestrator.Orchestrator
	lastSeen time.Time
}

// Registry owns one orchestrator per browser session.
type Registry struct {
	store   sessions.Store
	factory Factory
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// Config configures a Registry.
type Config struct {
	Store   sessions.Store
	Factory Factory
	TTL     time.Duration
	Logger  *slog.Logger
}

// New creates a Registry.
func New(cfg Config) *Registry {
	r := &Registry{
		store:   cfg.Store,
		factory: cfg.Factory,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	if r.ttl <= 0 {
		r.ttl = DefaultTTL
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Acquire returns the orchestrator for the request's session, creating the
// session (and setting its cookie on w) when the request has none or its
// orchestrator was evicted.
func (r *Registry) Acquire(w http.ResponseWriter, req *http.Request) (string, *orchestrator.Orchestrator, error) {
	sess, err := r.store.Get(req, CookieName)
	if err != nil && sess == nil {
		return "", nil, err
	}

	id, _ := sess.Values[idKey].(string)
	if id == "" {
		id = uuid.NewString()
		sess.Values[idKey] = id
		if err := sess.Save(req, w); err != nil {
			return "", nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		e = &entry{orch: r.factory()}
		r.entries[id] = e
		r.logger.Debug("session created", "session", id)
	}
	e.lastSeen = r.now()
	return id, e.orch, nil
}

// Lookup returns the orchestrator for the request's session without creating one.
func (r *Registry) Lookup(req *http.Request) (*orchestrator.Orchestrator, bool) {
	sess, err := r.store.Get(req, CookieName)
	if err != nil || sess == nil {
		return nil, false
	}
	id, _ := sess.Values[idKey].(string)
	if id == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.orch, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes and forgets sessions idle for longer than the TTL.
// It returns how many were evicted.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var stale []*orchestrator.Orchestrator
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.orch)
			delete(r.entries, id)
			r.logger.Debug("session expired", "session", id)
		}
	}
	r.mu.Unlock()

	for _, o := range stale {
		o.Close()
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done, then closes all sessions.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = r.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("expired idle sessions", "count", n)
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.orch.Close()
	}
}
