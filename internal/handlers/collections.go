package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dimitrije/gamevault-api/internal/collections"
	"github.com/dimitrije/gamevault-api/internal/middleware"
	"github.com/dimitrije/gamevault-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

type CollectionsHandler struct {
	registry RegistryInterface
	logger   *zap.Logger
}

func NewCollectionsHandler(registry RegistryInterface, logger *zap.Logger) *CollectionsHandler {
	return &CollectionsHandler{
		registry: registry,
		logger:   logger.Named("collections_handler"),
	}
}

// aggregator returns the caller's aggregator or writes the error response.
func (h *CollectionsHandler) aggregator(c *drift.Context) (*collections.Aggregator, bool) {
	return acquire(c, h.registry)
}

// loadTimeout bounds how long a request waits for a cold mirror.
const loadTimeout = 5 * time.Second

// loaded is aggregator for handlers that read or check the mirror: it also
// waits for the caller's first snapshot, so a request right after sign-in,
// logout or an idle sweep sees the stored collections.
func (h *CollectionsHandler) loaded(c *drift.Context) (*collections.Aggregator, bool) {
	agg, ok := h.aggregator(c)
	if !ok {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), loadTimeout)
	defer cancel()
	if err := agg.WaitLoaded(ctx); err != nil {
		respondError(c, err, "failed to load collections")
		return nil, false
	}
	return agg, true
}

func acquire(c *drift.Context, registry RegistryInterface) (*collections.Aggregator, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return nil, false
	}
	agg, err := registry.Acquire(p)
	if err != nil {
		respondError(c, err, "failed to open collections")
		return nil, false
	}
	return agg, true
}

func (h *CollectionsHandler) List(c *drift.Context) {
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}

	state := agg.Snapshot()
	_ = c.JSON(http.StatusOK, dto.CollectionsResponse{
		Collections: dto.NewCollectionResponses(state.Collections),
		Loading:     state.Loading,
		Error:       errorMessage(state.Err),
	})
}

func (h *CollectionsHandler) Create(c *drift.Context) {
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}

	var req dto.CreateCollectionRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	collection, err := agg.CreateCollection(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondError(c, err, "failed to create collection")
		return
	}

	_ = c.JSON(http.StatusCreated, dto.NewCollectionResponse(*collection))
}

func (h *CollectionsHandler) Update(c *drift.Context) {
	agg, ok := h.loaded(c)
	if !ok {
		return
	}

	collectionID, err := uuid.Parse(c.Param("collectionId"))
	if err != nil {
		c.BadRequest("invalid collection id")
		return
	}

	var req dto.UpdateCollectionRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if err := agg.UpdateCollection(c.Request.Context(), collectionID, req.Patch()); err != nil {
		respondError(c, err, "failed to update collection")
		return
	}

	_ = c.JSON(http.StatusOK, map[string]string{"message": "collection updated"})
}

func (h *CollectionsHandler) Delete(c *drift.Context) {
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}

	collectionID, err := uuid.Parse(c.Param("collectionId"))
	if err != nil {
		c.BadRequest("invalid collection id")
		return
	}

	if err := agg.DeleteCollection(c.Request.Context(), collectionID); err != nil {
		respondError(c, err, "failed to delete collection")
		return
	}

	_ = c.JSON(http.StatusOK, map[string]string{"message": "collection deleted"})
}

// Games lists the resolved games of a collection or of "all".
func (h *CollectionsHandler) Games(c *drift.Context) {
	agg, ok := h.loaded(c)
	if !ok {
		return
	}

	collectionID := c.Param("collectionId")
	games, err := agg.GamesIn(collectionID)
	if err != nil {
		respondError(c, err, "failed to list games")
		return
	}

	_ = c.JSON(http.StatusOK, dto.CollectionGamesResponse{
		CollectionID: collectionID,
		Games:        games,
	})
}

func (h *CollectionsHandler) AddGame(c *drift.Context) {
	agg, ok := h.loaded(c)
	if !ok {
		return
	}

	if err := agg.AddGame(c.Request.Context(), c.Param("collectionId"), c.Param("gameId")); err != nil {
		respondError(c, err, "failed to add game")
		return
	}

	_ = c.JSON(http.StatusOK, map[string]string{"message": "game added"})
}

func (h *CollectionsHandler) RemoveGame(c *drift.Context) {
	agg, ok := h.loaded(c)
	if !ok {
		return
	}

	if err := agg.RemoveGame(c.Request.Context(), c.Param("collectionId"), c.Param("gameId")); err != nil {
		respondError(c, err, "failed to remove game")
		return
	}

	_ = c.JSON(http.StatusOK, map[string]string{"message": "game removed"})
}

// Saved reports whether a game is in any of the caller's collections.
func (h *CollectionsHandler) Saved(c *drift.Context) {
	agg, ok := h.loaded(c)
	if !ok {
		return
	}

	gameID := strings.TrimSpace(c.Param("id"))
	if gameID == "" {
		c.BadRequest("game id is required")
		return
	}

	containing := agg.CollectionsContaining(gameID)
	ids := make([]uuid.UUID, len(containing))
	for i, col := range containing {
		ids[i] = col.ID
	}

	_ = c.JSON(http.StatusOK, dto.SavedResponse{
		GameID:        gameID,
		Saved:         agg.IsSaved(gameID),
		CollectionIDs: ids,
	})
}

// Logout stops the caller's aggregator. Credentials stay valid; the next
// request starts a fresh one.
func (h *CollectionsHandler) Logout(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	h.registry.Release(userID)
	h.logger.Debug("session ended", zap.String("user_id", userID.String()))

	_ = c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func errorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}
