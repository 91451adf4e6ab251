package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dimitrije/gamevault-api/internal/identity"
	"github.com/dimitrije/gamevault-api/internal/middleware"
	"github.com/dimitrije/gamevault-api/internal/services"
	"github.com/dimitrije/gamevault-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type APIKeyHandler struct {
	apiKeyService APIKeyServiceInterface
}

func NewAPIKeyHandler(apiKeyService APIKeyServiceInterface) *APIKeyHandler {
	return &APIKeyHandler{apiKeyService: apiKeyService}
}

// signedInWithToken rejects callers that authenticated with an API key, so a
// leaked key cannot mint or revoke keys.
func signedInWithToken(c *drift.Context) (uuid.UUID, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return uuid.Nil, false
	}
	if p.Kind == identity.KindAPIKey {
		c.Forbidden("api keys cannot manage api keys")
		return uuid.Nil, false
	}
	return p.UserID, true
}

func (h *APIKeyHandler) Create(c *drift.Context) {
	userID, ok := signedInWithToken(c)
	if !ok {
		return
	}

	var req dto.CreateAPIKeyRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.BadRequest("name is required")
		return
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		c.BadRequest("expires_at must be in the future")
		return
	}

	apiKey, plainKey, err := h.apiKeyService.Create(c.Request.Context(), userID, name, req.ExpiresAt)
	if err != nil {
		c.InternalServerError("failed to create api key")
		return
	}

	response := dto.APIKeyCreatedResponse{
		ID:        apiKey.ID,
		Name:      apiKey.Name,
		Key:       plainKey,
		KeyPrefix: apiKey.KeyPrefix,
		CreatedAt: apiKey.CreatedAt.Format(time.RFC3339),
	}
	if apiKey.ExpiresAt != nil {
		formatted := apiKey.ExpiresAt.Format(time.RFC3339)
		response.ExpiresAt = &formatted
	}

	_ = c.JSON(http.StatusCreated, response)
}

func (h *APIKeyHandler) List(c *drift.Context) {
	userID, ok := signedInWithToken(c)
	if !ok {
		return
	}

	keys, err := h.apiKeyService.List(c.Request.Context(), userID)
	if err != nil {
		c.InternalServerError("failed to list api keys")
		return
	}

	response := make([]dto.APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		item := dto.APIKeyResponse{
			ID:        k.ID,
			Name:      k.Name,
			KeyPrefix: k.KeyPrefix,
			CreatedAt: k.CreatedAt.Format(time.RFC3339),
		}
		if k.ExpiresAt != nil {
			formatted := k.ExpiresAt.Format(time.RFC3339)
			item.ExpiresAt = &formatted
		}
		if k.LastUsedAt != nil {
			formatted := k.LastUsedAt.Format(time.RFC3339)
			item.LastUsedAt = &formatted
		}
		response = append(response, item)
	}

	_ = c.JSON(http.StatusOK, response)
}

func (h *APIKeyHandler) Revoke(c *drift.Context) {
	userID, ok := signedInWithToken(c)
	if !ok {
		return
	}

	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		c.BadRequest("invalid key id")
		return
	}

	if err := h.apiKeyService.Revoke(c.Request.Context(), keyID, userID); err != nil {
		if errors.Is(err, services.ErrAPIKeyNotFound) {
			c.NotFound("api key not found")
			return
		}
		c.InternalServerError("failed to revoke api key")
		return
	}

	_ = c.JSON(http.StatusOK, map[string]string{"message": "api key revoked"})
}
