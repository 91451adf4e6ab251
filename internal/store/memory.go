package store

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dimitrije/gamevault-api/internal/hub"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/google/uuid"
)

// Memory keeps collections in process. It backs tests and the memory://
// development mode.
type Memory struct {
	hub *hub.Hub

	mu          sync.RWMutex
	collections map[uuid.UUID]*models.Collection
	writes      atomic.Int64
	lastStamp   time.Time
}

func NewMemory(h *hub.Hub) *Memory {
	return &Memory{
		hub:         h,
		collections: make(map[uuid.UUID]*models.Collection),
	}
}

// Writes counts every write call that reached the store, successful or not.
func (m *Memory) Writes() int {
	return int(m.writes.Load())
}

func (m *Memory) Subscribe(ctx context.Context, ownerID uuid.UUID) (Subscription, error) {
	return subscribe(ctx, m.hub, ownerID, func(ctx context.Context) ([]models.Collection, error) {
		return m.List(ctx, ownerID)
	}), nil
}

func (m *Memory) List(_ context.Context, ownerID uuid.UUID) ([]models.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Collection, 0)
	for _, c := range m.collections {
		if c.OwnerID == ownerID {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.Collection) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out, nil
}

func (m *Memory) Create(_ context.Context, nc models.NewCollection) (*models.Collection, error) {
	m.writes.Add(1)

	m.mu.Lock()
	now := m.stampLocked()
	c := &models.Collection{
		ID:        uuid.New(),
		OwnerID:   nc.OwnerID,
		Name:      nc.Name,
		GameIDs:   models.UniqueGameIDs(nc.GameIDs),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nc.Description != nil {
		d := *nc.Description
		c.Description = &d
	}
	m.collections[c.ID] = c
	out := c.Clone()
	m.mu.Unlock()

	m.hub.PublishCreated(c.OwnerID, c.ID)
	return &out, nil
}

func (m *Memory) UpdateFields(ctx context.Context, ownerID, id uuid.UUID, patch models.CollectionPatch) error {
	return m.BatchUpdateFields(ctx, ownerID, []models.CollectionUpdate{{ID: id, Patch: patch}})
}

func (m *Memory) BatchUpdateFields(_ context.Context, ownerID uuid.UUID, updates []models.CollectionUpdate) error {
	m.writes.Add(1)

	if len(updates) == 0 {
		return nil
	}
	for _, u := range updates {
		if err := u.Patch.Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	for _, u := range updates {
		c, ok := m.collections[u.ID]
		if !ok || c.OwnerID != ownerID {
			m.mu.Unlock()
			return ErrNotFound
		}
	}
	now := m.stampLocked()
	ids := make([]uuid.UUID, 0, len(updates))
	for _, u := range updates {
		c := m.collections[u.ID]
		u.Patch.Apply(c)
		c.UpdatedAt = now
		ids = append(ids, u.ID)
	}
	m.mu.Unlock()

	m.hub.PublishUpdated(ownerID, ids...)
	return nil
}

func (m *Memory) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	m.writes.Add(1)

	m.mu.Lock()
	c, ok := m.collections[id]
	if !ok || c.OwnerID != ownerID {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.collections, id)
	m.mu.Unlock()

	m.hub.PublishDeleted(ownerID, id)
	return nil
}

// stampLocked returns a strictly increasing timestamp so updated_at ordering
// is total even within one clock tick.
func (m *Memory) stampLocked() time.Time {
	now := time.Now().UTC()
	if !now.After(m.lastStamp) {
		now = m.lastStamp.Add(time.Microsecond)
	}
	m.lastStamp = now
	return now
}
