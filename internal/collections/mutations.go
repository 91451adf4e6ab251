package collections

import (
	"context"
	"strings"

	"github.com/dimitrije/gamevault-api/internal/metrics"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/google/uuid"
)

// authorize returns the mirrored owner if the session's current user is that
// owner. A missing user and a user other than the mirrored owner both fail.
func (a *Aggregator) authorize() (uuid.UUID, error) {
	p, ok := a.session.Current()
	if !ok || !p.Valid() {
		return uuid.Nil, ErrUnauthorized
	}

	a.mu.RLock()
	owner, mirroring := a.owner, a.mirroring
	a.mu.RUnlock()

	if !mirroring || owner != p.UserID {
		return p.UserID, ErrUnauthorized
	}
	return owner, nil
}

func (a *Aggregator) finish(op Op, owner uuid.UUID, err error) error {
	metrics.ObserveMutation(string(op), err)
	if err != nil {
		a.reporter.Report(newReport(owner, op, err))
	}
	return err
}

func (a *Aggregator) CreateCollection(ctx context.Context, name string, description *string) (*models.Collection, error) {
	owner, err := a.authorize()
	if err != nil {
		return nil, a.finish(OpCreate, owner, err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, a.finish(OpCreate, owner, ErrInvalidName)
	}

	c, err := a.store.Create(ctx, models.NewCollection{
		OwnerID:     owner,
		Name:        name,
		Description: description,
		GameIDs:     []string{},
	})
	if err != nil {
		return nil, a.finish(OpCreate, owner, storeError(err))
	}
	a.finish(OpCreate, owner, nil)
	return c, nil
}

func (a *Aggregator) RenameCollection(ctx context.Context, id uuid.UUID, name string) error {
	return a.update(ctx, OpRename, id, models.CollectionPatch{Name: &name})
}

// UpdateCollection applies a field-level patch to a mirrored collection.
func (a *Aggregator) UpdateCollection(ctx context.Context, id uuid.UUID, patch models.CollectionPatch) error {
	return a.update(ctx, OpUpdate, id, patch)
}

func (a *Aggregator) update(ctx context.Context, op Op, id uuid.UUID, patch models.CollectionPatch) error {
	owner, err := a.authorize()
	if err != nil {
		return a.finish(op, owner, err)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return a.finish(op, owner, ErrInvalidName)
		}
		patch.Name = &name
	}
	if err := patch.Validate(); err != nil {
		return a.finish(op, owner, err)
	}
	if a.Loading() {
		return a.finish(op, owner, ErrNotReady)
	}
	if !a.mirrors(id) {
		return a.finish(op, owner, ErrCollectionNotFound)
	}
	if patch.IsEmpty() {
		return a.finish(op, owner, nil)
	}

	if err := a.store.UpdateFields(ctx, owner, id, patch); err != nil {
		return a.finish(op, owner, storeError(err))
	}
	return a.finish(op, owner, nil)
}

// DeleteCollection removes a collection. The store is asked even when the
// mirror no longer holds the id.
func (a *Aggregator) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	owner, err := a.authorize()
	if err != nil {
		return a.finish(OpDelete, owner, err)
	}

	if err := a.store.Delete(ctx, owner, id); err != nil {
		return a.finish(OpDelete, owner, storeError(err))
	}
	return a.finish(OpDelete, owner, nil)
}

// AddGame adds a game to one collection, or for models.AllCollectionsID to
// every collection in one atomic batch. An owner without collections gets a
// default collection holding just this game.
func (a *Aggregator) AddGame(ctx context.Context, collectionID, gameID string) error {
	owner, err := a.authorize()
	if err != nil {
		return a.finish(OpAddGame, owner, err)
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return a.finish(OpAddGame, owner, ErrInvalidGameID)
	}

	if collectionID != models.AllCollectionsID {
		// The store is owner-scoped, so a collection the mirror has not seen
		// yet (a fresh create) can still be added to.
		return a.finish(OpAddGame, owner, a.patchOne(ctx, owner, collectionID, false, models.CollectionPatch{AddGameIDs: []string{gameID}}))
	}

	cs, loading := a.mirrored()
	if loading {
		return a.finish(OpAddGame, owner, ErrNotReady)
	}

	if len(cs) == 0 {
		_, err := a.store.Create(ctx, models.NewCollection{
			OwnerID: owner,
			Name:    a.defaultName,
			GameIDs: []string{gameID},
		})
		if err != nil {
			return a.finish(OpAddGame, owner, storeError(err))
		}
		return a.finish(OpAddGame, owner, nil)
	}

	updates := make([]models.CollectionUpdate, 0, len(cs))
	for _, c := range cs {
		updates = append(updates, models.CollectionUpdate{ID: c.ID, Patch: models.CollectionPatch{AddGameIDs: []string{gameID}}})
	}
	if err := a.store.BatchUpdateFields(ctx, owner, updates); err != nil {
		return a.finish(OpAddGame, owner, storeError(err))
	}
	return a.finish(OpAddGame, owner, nil)
}

// RemoveGame removes a game from one collection, or for
// models.AllCollectionsID from every collection holding it in one atomic
// batch. Removing an absent game succeeds without a change.
func (a *Aggregator) RemoveGame(ctx context.Context, collectionID, gameID string) error {
	owner, err := a.authorize()
	if err != nil {
		return a.finish(OpRemoveGame, owner, err)
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return a.finish(OpRemoveGame, owner, ErrInvalidGameID)
	}

	if collectionID != models.AllCollectionsID {
		return a.finish(OpRemoveGame, owner, a.patchOne(ctx, owner, collectionID, true, models.CollectionPatch{RemoveGameIDs: []string{gameID}}))
	}

	cs, loading := a.mirrored()
	if loading {
		return a.finish(OpRemoveGame, owner, ErrNotReady)
	}

	updates := make([]models.CollectionUpdate, 0)
	for _, c := range cs {
		if c.Contains(gameID) {
			updates = append(updates, models.CollectionUpdate{ID: c.ID, Patch: models.CollectionPatch{RemoveGameIDs: []string{gameID}}})
		}
	}
	if len(updates) == 0 {
		return a.finish(OpRemoveGame, owner, nil)
	}
	if err := a.store.BatchUpdateFields(ctx, owner, updates); err != nil {
		return a.finish(OpRemoveGame, owner, storeError(err))
	}
	return a.finish(OpRemoveGame, owner, nil)
}

// patchOne updates one collection. With mirrored set the id must be in the
// loaded mirror before the store is asked.
func (a *Aggregator) patchOne(ctx context.Context, owner uuid.UUID, collectionID string, mirrored bool, patch models.CollectionPatch) error {
	id, err := uuid.Parse(collectionID)
	if err != nil {
		return ErrCollectionNotFound
	}
	if mirrored {
		if a.Loading() {
			return ErrNotReady
		}
		if !a.mirrors(id) {
			return ErrCollectionNotFound
		}
	}
	if err := a.store.UpdateFields(ctx, owner, id, patch); err != nil {
		return storeError(err)
	}
	return nil
}

func (a *Aggregator) mirrors(id uuid.UUID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, c := range a.collections {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (a *Aggregator) mirrored() ([]models.Collection, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneCollections(a.collections), a.loading
}
