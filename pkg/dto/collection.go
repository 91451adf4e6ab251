package dto

import (
	"time"

	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/google/uuid"
)

type CreateCollectionRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// UpdateCollectionRequest replaces the fields that are present. A present
// game_ids replaces the whole set.
type UpdateCollectionRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	GameIDs     *[]string `json:"game_ids,omitempty"`
}

func (r UpdateCollectionRequest) Patch() models.CollectionPatch {
	patch := models.CollectionPatch{
		Name:        r.Name,
		Description: r.Description,
	}
	if r.GameIDs != nil {
		patch.GameIDs = *r.GameIDs
		if patch.GameIDs == nil {
			patch.GameIDs = []string{}
		}
	}
	return patch
}

type CollectionResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	GameIDs     []string  `json:"game_ids"`
	GameCount   int       `json:"game_count"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

func NewCollectionResponse(c models.Collection) CollectionResponse {
	ids := c.GameIDs
	if ids == nil {
		ids = []string{}
	}
	return CollectionResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		GameIDs:     ids,
		GameCount:   len(ids),
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
}

func NewCollectionResponses(cs []models.Collection) []CollectionResponse {
	out := make([]CollectionResponse, len(cs))
	for i, c := range cs {
		out[i] = NewCollectionResponse(c)
	}
	return out
}

type CollectionsResponse struct {
	Collections []CollectionResponse `json:"collections"`
	Loading     bool                 `json:"loading"`
	Error       *string              `json:"error,omitempty"`
}

type CollectionGamesResponse struct {
	CollectionID string        `json:"collection_id"`
	Games        []models.Game `json:"games"`
}

type SavedResponse struct {
	GameID        string      `json:"game_id"`
	Saved         bool        `json:"saved"`
	CollectionIDs []uuid.UUID `json:"collection_ids"`
}

// StateEvent is one aggregator snapshot as streamed to clients.
type StateEvent struct {
	Collections []CollectionResponse `json:"collections"`
	Games       []models.Game        `json:"games"`
	Loading     bool                 `json:"loading"`
	Error       *string              `json:"error,omitempty"`
}
