package store

import (
	"context"
	"testing"

	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CreateAndList(t *testing.T) {
	m := NewMemory(startHub(t))
	ctx := context.Background()
	owner := uuid.New()

	first, err := m.Create(ctx, models.NewCollection{OwnerID: owner, Name: "First", GameIDs: []string{"1", "1"}})
	require.NoError(t, err)
	second, err := m.Create(ctx, models.NewCollection{OwnerID: owner, Name: "Second"})
	require.NoError(t, err)
	_, err = m.Create(ctx, models.NewCollection{OwnerID: uuid.New(), Name: "Foreign"})
	require.NoError(t, err)

	list, err := m.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// most recently updated first
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, []string{"1"}, list[1].GameIDs)
	assert.Equal(t, 3, m.Writes())
}

func TestMemory_UpdateFieldsRefreshesUpdatedAt(t *testing.T) {
	m := NewMemory(startHub(t))
	ctx := context.Background()
	owner := uuid.New()

	a, _ := m.Create(ctx, models.NewCollection{OwnerID: owner, Name: "A"})
	b, _ := m.Create(ctx, models.NewCollection{OwnerID: owner, Name: "B"})

	require.NoError(t, m.UpdateFields(ctx, owner, a.ID, models.CollectionPatch{AddGameIDs: []string{"7"}}))

	list, _ := m.List(ctx, owner)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
	assert.True(t, list[0].UpdatedAt.After(a.UpdatedAt))
	assert.Equal(t, []string{"7"}, list[0].GameIDs)
}

func TestMemory_ForeignOwnerIsNotFound(t *testing.T) {
	m := NewMemory(startHub(t))
	ctx := context.Background()
	owner := uuid.New()
	c, _ := m.Create(ctx, models.NewCollection{OwnerID: owner, Name: "Mine"})

	intruder := uuid.New()
	name := "stolen"
	assert.ErrorIs(t, m.UpdateFields(ctx, intruder, c.ID, models.CollectionPatch{Name: &name}), ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, intruder, c.ID), ErrNotFound)

	list, _ := m.List(ctx, owner)
	require.Len(t, list, 1)
	assert.Equal(t, "Mine", list[0].Name)
}

func TestMemory_BatchIsAllOrNothing(t *testing.T) {
	m := NewMemory(startHub(t))
	ctx := context.Background()
	owner := uuid.New()
	a, _ := m.Create(ctx, models.NewCollection{OwnerID: owner, Name: "A"})

	err := m.BatchUpdateFields(ctx, owner, []models.CollectionUpdate{
		{ID: a.ID, Patch: models.CollectionPatch{AddGameIDs: []string{"1"}}},
		{ID: uuid.New(), Patch: models.CollectionPatch{AddGameIDs: []string{"1"}}},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	list, _ := m.List(ctx, owner)
	assert.Empty(t, list[0].GameIDs)
}

func TestMemory_RejectsConflictingPatch(t *testing.T) {
	m := NewMemory(startHub(t))
	ctx := context.Background()
	owner := uuid.New()
	a, _ := m.Create(ctx, models.NewCollection{OwnerID: owner, Name: "A"})

	err := m.UpdateFields(ctx, owner, a.ID, models.CollectionPatch{
		AddGameIDs:    []string{"1"},
		RemoveGameIDs: []string{"2"},
	})
	assert.ErrorIs(t, err, models.ErrConflictingPatch)
}

func TestMemory_SubscribeDeliversFullSnapshots(t *testing.T) {
	m := NewMemory(startHub(t))
	ctx := context.Background()
	owner := uuid.New()
	a, _ := m.Create(ctx, models.NewCollection{OwnerID: owner, Name: "A"})

	sub, err := m.Subscribe(ctx, owner)
	require.NoError(t, err)
	defer sub.Close()

	snap := nextSnapshot(t, sub, func(s []models.Collection) bool { return len(s) == 1 })
	assert.Equal(t, a.ID, snap[0].ID)

	b, _ := m.Create(ctx, models.NewCollection{OwnerID: owner, Name: "B"})
	snap = nextSnapshot(t, sub, func(s []models.Collection) bool { return len(s) == 2 })
	assert.Equal(t, b.ID, snap[0].ID)

	// another owner's writes never show up
	_, _ = m.Create(ctx, models.NewCollection{OwnerID: uuid.New(), Name: "X"})

	require.NoError(t, m.Delete(ctx, owner, a.ID))
	snap = nextSnapshot(t, sub, func(s []models.Collection) bool { return len(s) == 1 })
	assert.Equal(t, b.ID, snap[0].ID)
}

func TestMemory_SubscriptionCloseStopsStream(t *testing.T) {
	m := NewMemory(startHub(t))
	owner := uuid.New()

	sub, err := m.Subscribe(context.Background(), owner)
	require.NoError(t, err)
	sub.Close()

	for range sub.Snapshots() {
	}
	assert.NoError(t, sub.Err())
}
