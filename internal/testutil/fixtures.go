package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/dimitrije/gamevault-api/internal/database"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/google/uuid"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateCollection inserts a collection owned by ownerID.
func (f *Fixtures) CreateCollection(t *testing.T, ownerID uuid.UUID, opts ...CollectionOption) *models.Collection {
	t.Helper()
	f.counter++

	c := &models.Collection{
		OwnerID: ownerID,
		Name:    fmt.Sprintf("Test Collection %d", f.counter),
		GameIDs: []string{},
	}
	for _, opt := range opts {
		opt(c)
	}

	err := f.db.Pool.QueryRow(context.Background(), `
		INSERT INTO collections (owner_id, name, description, game_ids)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, c.OwnerID, c.Name, c.Description, c.GameIDs).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		t.Fatalf("failed to create collection: %v", err)
	}
	return c
}

// CollectionOption configures a test collection
type CollectionOption func(*models.Collection)

func WithCollectionName(name string) CollectionOption {
	return func(c *models.Collection) {
		c.Name = name
	}
}

func WithGames(ids ...string) CollectionOption {
	return func(c *models.Collection) {
		c.GameIDs = ids
	}
}

// CollectionFixture builds an in-memory collection without touching a database.
func CollectionFixture(ownerID uuid.UUID, name string, gameIDs ...string) models.Collection {
	if gameIDs == nil {
		gameIDs = []string{}
	}
	return models.Collection{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Name:    name,
		GameIDs: gameIDs,
	}
}
