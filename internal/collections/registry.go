package collections

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dimitrije/gamevault-api/internal/identity"
	"github.com/dimitrije/gamevault-api/internal/metrics"
	"github.com/dimitrije/gamevault-api/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrRegistryClosed = errors.New("aggregator registry is closed")

// Registry keeps one running Aggregator per signed-in user and stops the
// ones that have been idle for longer than the idle timeout.
type Registry struct {
	store       store.Store
	catalog     Catalog
	opts        Options
	idleTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	closed  bool
}

type entry struct {
	session  *identity.Session
	agg      *Aggregator
	cancel   context.CancelFunc
	done     chan struct{}
	lastUsed time.Time
}

func NewRegistry(s store.Store, catalog Catalog, idleTimeout time.Duration, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		store:       s,
		catalog:     catalog,
		opts:        opts,
		idleTimeout: idleTimeout,
		logger:      opts.Logger.Named("registry"),
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		entries:     make(map[uuid.UUID]*entry),
	}
}

// Acquire returns the principal's aggregator, starting one on first use.
func (r *Registry) Acquire(p identity.Principal) (*Aggregator, error) {
	if !p.Valid() {
		return nil, ErrUnauthorized
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}

	if e, ok := r.entries[p.UserID]; ok {
		e.lastUsed = r.now()
		return e.agg, nil
	}

	session := identity.NewSignedInSession(p)
	agg := New(session, r.store, r.catalog, r.opts)
	ctx, cancel := context.WithCancel(r.ctx)
	e := &entry{
		session:  session,
		agg:      agg,
		cancel:   cancel,
		done:     make(chan struct{}),
		lastUsed: r.now(),
	}
	go func() {
		defer close(e.done)
		agg.Run(ctx)
	}()
	<-agg.Started()

	r.entries[p.UserID] = e
	metrics.ActiveSessions.Inc()
	r.logger.Debug("aggregator started", zap.String("user_id", p.UserID.String()), zap.String("kind", p.Kind.String()))
	return agg, nil
}

// Release signs the user out and stops their aggregator.
func (r *Registry) Release(userID uuid.UUID) bool {
	r.mu.Lock()
	e, ok := r.entries[userID]
	if ok {
		delete(r.entries, userID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.stop(userID, e)
	return true
}

func (r *Registry) stop(userID uuid.UUID, e *entry) {
	e.session.SignOut()
	e.cancel()
	<-e.done
	metrics.ActiveSessions.Dec()
	r.logger.Debug("aggregator stopped", zap.String("user_id", userID.String()))
}

// Sweep stops every aggregator idle for longer than the idle timeout and
// returns how many it stopped.
func (r *Registry) Sweep() int {
	if r.idleTimeout <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	idle := make(map[uuid.UUID]*entry)
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			idle[id] = e
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for id, e := range idle {
		r.stop(id, e)
	}
	return len(idle)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run sweeps idle aggregators every interval until ctx ends, then closes
// the registry.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer r.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("stopped idle aggregators", zap.Int("count", n))
			}
		}
	}
}

// Close stops every aggregator. Acquire fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[uuid.UUID]*entry)
	r.mu.Unlock()

	for id, e := range entries {
		r.stop(id, e)
	}
	r.cancel()
}
