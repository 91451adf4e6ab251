package handlers

import (
	"context"
	"time"

	"github.com/dimitrije/gamevault-api/internal/catalog"
	"github.com/dimitrije/gamevault-api/internal/collections"
	"github.com/dimitrije/gamevault-api/internal/identity"
	"github.com/dimitrije/gamevault-api/internal/middleware"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/google/uuid"
)

// CatalogInterface defines the catalog browsing methods used by handlers
type CatalogInterface interface {
	Games(ctx context.Context, q catalog.GamesQuery) (*models.GamesPage, error)
	GameDetails(ctx context.Context, id string) (*models.GameDetails, error)
	Popular(ctx context.Context) ([]models.Game, error)
	Trending(ctx context.Context) ([]models.Game, error)
}

// RegistryInterface defines the methods used by handlers from the aggregator Registry
type RegistryInterface interface {
	Acquire(p identity.Principal) (*collections.Aggregator, error)
	Release(userID uuid.UUID) bool
}

// APIKeyServiceInterface defines the methods used by handlers from APIKeyService
type APIKeyServiceInterface interface {
	Create(ctx context.Context, userID uuid.UUID, name string, expiresAt *time.Time) (*models.APIKey, string, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error)
	Revoke(ctx context.Context, keyID, userID uuid.UUID) error
}

// APIKeyManager is an APIKeyServiceInterface that can also authenticate keys
type APIKeyManager interface {
	APIKeyServiceInterface
	middleware.APIKeyValidator
}
