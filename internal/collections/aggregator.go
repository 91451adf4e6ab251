// Package collections mirrors one user's collections in memory, resolves the
// games they reference and owns every collection mutation.
package collections

import (
	"context"
	"fmt"
	"sync"

	"github.com/dimitrije/gamevault-api/internal/identity"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/dimitrije/gamevault-api/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// Catalog resolves one game id to card metadata.
type Catalog interface {
	GameByID(ctx context.Context, id string) (*models.Game, error)
}

// Options tunes an Aggregator. Zero values fall back to defaults.
type Options struct {
	// Concurrency bounds the catalog lookups started by one snapshot.
	Concurrency           int
	DefaultCollectionName string
	Reporter              Reporter
	Logger                *zap.Logger
}

// State is one consistent read of the aggregator.
type State struct {
	OwnerID     uuid.UUID
	SignedIn    bool
	Loading     bool
	Err         error
	Collections []models.Collection
	// Games is the resolved "all" view.
	Games []models.Game
}

type Aggregator struct {
	session     *identity.Session
	store       store.Store
	catalog     Catalog
	reporter    Reporter
	logger      *zap.Logger
	concurrency int
	defaultName string

	started   chan struct{}
	startOnce sync.Once

	mu          sync.RWMutex
	owner       uuid.UUID
	mirroring   bool
	loading     bool
	err         error
	collections []models.Collection
	games       map[string]models.Game
	epoch       uint64
	inflight    map[string]*lookup

	watchMu   sync.Mutex
	watchers  map[int]chan struct{}
	nextWatch int
	closed    bool
}

// New builds an aggregator following session. It does nothing until Run.
func New(session *identity.Session, s store.Store, catalog Catalog, opts Options) *Aggregator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.DefaultCollectionName == "" {
		opts.DefaultCollectionName = "My Collection"
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Aggregator{
		session:     session,
		store:       s,
		catalog:     catalog,
		reporter:    opts.Reporter,
		logger:      opts.Logger.Named("collections"),
		concurrency: opts.Concurrency,
		defaultName: opts.DefaultCollectionName,
		started:     make(chan struct{}),
		games:       make(map[string]models.Game),
		inflight:    make(map[string]*lookup),
		watchers:    make(map[int]chan struct{}),
	}
}

// mirror is the live subscription for one signed-in owner.
type mirror struct {
	owner  uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

func (m *mirror) stop() {
	m.cancel()
	<-m.done
}

// Run follows the session until ctx ends: a sign-in starts mirroring that
// user's collections, a sign-out stops it and clears all state. Once Run
// returns no watcher is notified again.
func (a *Aggregator) Run(ctx context.Context) {
	signals, stopWatch := a.session.Watch()
	defer stopWatch()
	defer a.teardown()

	var current *mirror
	reconcile := func() {
		p, ok := a.session.Current()
		if current != nil && ok && current.owner == p.UserID {
			return
		}
		if current != nil {
			current.stop()
			current = nil
			a.reset()
		}
		if ok && p.Valid() {
			current = a.follow(ctx, p.UserID)
		}
	}

	reconcile()
	a.startOnce.Do(func() { close(a.started) })

	for {
		select {
		case <-ctx.Done():
			if current != nil {
				current.stop()
			}
			return
		case <-signals:
			reconcile()
		}
	}
}

// Started is closed once Run has picked up the session's initial user.
func (a *Aggregator) Started() <-chan struct{} {
	return a.started
}

func (a *Aggregator) follow(ctx context.Context, owner uuid.UUID) *mirror {
	ctx, cancel := context.WithCancel(ctx)
	m := &mirror{owner: owner, cancel: cancel, done: make(chan struct{})}

	a.mu.Lock()
	a.owner = owner
	a.mirroring = true
	a.loading = true
	a.err = nil
	a.collections = nil
	a.mu.Unlock()
	a.notify()

	a.logger.Debug("mirroring collections", zap.String("owner_id", owner.String()))

	go func() {
		defer close(m.done)
		a.consume(ctx, owner)
	}()
	return m
}

func (a *Aggregator) consume(ctx context.Context, owner uuid.UUID) {
	var resolving sync.WaitGroup
	defer resolving.Wait()

	sub, err := a.store.Subscribe(ctx, owner)
	if err != nil {
		a.fail(owner, err)
		return
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-sub.Snapshots():
			if !ok {
				if err := sub.Err(); err != nil && ctx.Err() == nil {
					a.fail(owner, err)
				}
				return
			}
			a.apply(ctx, owner, snapshot, &resolving)
		}
	}
}

// lookup is one in-flight catalog request. It outlives the snapshot that
// started it for as long as later snapshots still reference its id.
type lookup struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

// apply replaces the mirrored collections with a snapshot and resolves the
// game ids not cached yet. Lookups for ids the snapshot no longer references
// are cancelled and their late results discarded; the rest carry over.
func (a *Aggregator) apply(ctx context.Context, owner uuid.UUID, snapshot []models.Collection, resolving *sync.WaitGroup) {
	a.mu.Lock()
	if !a.mirroring || a.owner != owner {
		a.mu.Unlock()
		return
	}
	a.collections = snapshot
	a.loading = false

	referenced := referencedIDs(snapshot)
	keep := make(map[string]bool, len(referenced))
	for _, id := range referenced {
		keep[id] = true
	}
	for id, l := range a.inflight {
		if !keep[id] {
			l.cancel()
			delete(a.inflight, id)
		}
	}

	var pending []*lookup
	for _, id := range referenced {
		if _, ok := a.games[id]; ok {
			continue
		}
		if _, ok := a.inflight[id]; ok {
			continue
		}
		l := &lookup{id: id}
		l.ctx, l.cancel = context.WithCancel(ctx)
		a.inflight[id] = l
		pending = append(pending, l)
	}
	epoch := a.epoch
	a.mu.Unlock()
	a.notify()

	if len(pending) == 0 {
		return
	}
	resolving.Add(1)
	go func() {
		defer resolving.Done()
		a.resolve(owner, epoch, pending)
	}()
}

func (a *Aggregator) resolve(owner uuid.UUID, epoch uint64, pending []*lookup) {
	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for _, l := range pending {
		g.Go(func() error {
			if l.ctx.Err() != nil {
				a.commit(owner, epoch, l, nil)
				return nil
			}
			game, err := a.catalog.GameByID(l.ctx, l.id)
			if err != nil {
				// One unresolvable game never fails the others.
				if l.ctx.Err() == nil {
					a.logger.Warn("failed to resolve game",
						zap.String("owner_id", owner.String()),
						zap.String("game_id", l.id),
						zap.Error(err),
					)
				}
				game = nil
			}
			a.commit(owner, epoch, l, game)
			return nil
		})
	}
	_ = g.Wait()
}

// commit settles a lookup. A nil game only releases it, so the id is retried
// by the next snapshot that still references it.
func (a *Aggregator) commit(owner uuid.UUID, epoch uint64, l *lookup, game *models.Game) {
	defer l.cancel()

	a.mu.Lock()
	if a.epoch != epoch || !a.mirroring || a.owner != owner || a.inflight[l.id] != l {
		a.mu.Unlock()
		return
	}
	delete(a.inflight, l.id)
	if game == nil || l.ctx.Err() != nil || !references(a.collections, l.id) {
		a.mu.Unlock()
		return
	}
	a.games[l.id] = *game
	a.mu.Unlock()
	a.notify()
}

func (a *Aggregator) fail(owner uuid.UUID, err error) {
	a.mu.Lock()
	if !a.mirroring || a.owner != owner {
		a.mu.Unlock()
		return
	}
	a.err = fmt.Errorf("%w: %w", ErrStore, err)
	a.loading = false
	a.mu.Unlock()

	a.logger.Error("collection subscription failed",
		zap.String("owner_id", owner.String()),
		zap.Error(err),
	)
	a.notify()
}

func (a *Aggregator) reset() {
	a.clear()
	a.notify()
}

func (a *Aggregator) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range a.inflight {
		l.cancel()
	}
	a.inflight = make(map[string]*lookup)
	a.epoch++
	a.owner = uuid.Nil
	a.mirroring = false
	a.loading = false
	a.err = nil
	a.collections = nil
	a.games = make(map[string]models.Game)
}

func (a *Aggregator) teardown() {
	a.startOnce.Do(func() { close(a.started) })

	a.watchMu.Lock()
	a.closed = true
	for id, ch := range a.watchers {
		close(ch)
		delete(a.watchers, id)
	}
	a.watchMu.Unlock()

	a.clear()
}

// Watch returns a channel that receives a coalesced signal after every state
// change. The channel is closed when the aggregator stops.
func (a *Aggregator) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	a.watchMu.Lock()
	if a.closed {
		a.watchMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := a.nextWatch
	a.nextWatch++
	a.watchers[id] = ch
	a.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.watchMu.Lock()
			defer a.watchMu.Unlock()
			if _, ok := a.watchers[id]; ok {
				delete(a.watchers, id)
				close(ch)
			}
		})
	}
}

func (a *Aggregator) notify() {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.closed {
		return
	}
	for _, ch := range a.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Owner is the user whose collections are mirrored.
func (a *Aggregator) Owner() (uuid.UUID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.owner, a.mirroring
}

// Collections returns the mirrored collections, most recently updated first.
func (a *Aggregator) Collections() []models.Collection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneCollections(a.collections)
}

// Loading reports whether the first snapshot is still outstanding.
func (a *Aggregator) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loading
}

// WaitLoaded blocks until the mirrored owner's first snapshot has been
// applied or the subscription failed. It returns ErrNotReady if ctx ends or
// the aggregator stops first.
func (a *Aggregator) WaitLoaded(ctx context.Context) error {
	signals, stop := a.Watch()
	defer stop()

	for a.Loading() {
		select {
		case <-ctx.Done():
			return ErrNotReady
		case _, ok := <-signals:
			if !ok {
				return ErrNotReady
			}
		}
	}
	return nil
}

// Err is the fatal subscription error, if any.
func (a *Aggregator) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// GamesIn returns the resolved games of one collection, or of every
// collection for models.AllCollectionsID. Each game appears once and
// unresolved ids are left out.
func (a *Aggregator) GamesIn(collectionID string) ([]models.Game, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if collectionID == models.AllCollectionsID {
		return a.resolvedLocked(referencedIDs(a.collections)), nil
	}

	c, ok := a.findLocked(collectionID)
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return a.resolvedLocked(models.UniqueGameIDs(c.GameIDs)), nil
}

// IsSaved reports whether any mirrored collection holds the game.
func (a *Aggregator) IsSaved(gameID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return references(a.collections, gameID)
}

// CollectionsContaining returns the mirrored collections holding the game.
func (a *Aggregator) CollectionsContaining(gameID string) []models.Collection {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.Collection, 0)
	for _, c := range a.collections {
		if c.Contains(gameID) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Snapshot reads collections, loading, error and the resolved "all" view
// under one lock.
func (a *Aggregator) Snapshot() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return State{
		OwnerID:     a.owner,
		SignedIn:    a.mirroring,
		Loading:     a.loading,
		Err:         a.err,
		Collections: cloneCollections(a.collections),
		Games:       a.resolvedLocked(referencedIDs(a.collections)),
	}
}

func (a *Aggregator) findLocked(collectionID string) (models.Collection, bool) {
	id, err := uuid.Parse(collectionID)
	if err != nil {
		return models.Collection{}, false
	}
	for _, c := range a.collections {
		if c.ID == id {
			return c, true
		}
	}
	return models.Collection{}, false
}

func (a *Aggregator) resolvedLocked(ids []string) []models.Game {
	games := make([]models.Game, 0, len(ids))
	for _, id := range ids {
		if g, ok := a.games[id]; ok {
			games = append(games, g)
		}
	}
	return games
}

// referencedIDs is the distinct union of every collection's game ids, in
// first-seen order.
func referencedIDs(cs []models.Collection) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, c := range cs {
		for _, id := range c.GameIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func references(cs []models.Collection, gameID string) bool {
	for _, c := range cs {
		if c.Contains(gameID) {
			return true
		}
	}
	return false
}

func cloneCollections(cs []models.Collection) []models.Collection {
	out := make([]models.Collection, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}
