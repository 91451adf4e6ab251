package handlers

import (
	"errors"
	"net/http"

	"github.com/dimitrije/gamevault-api/internal/catalog"
	"github.com/dimitrije/gamevault-api/internal/collections"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/m1z23r/drift/pkg/drift"
)

// respondError writes the status for a collections or catalog error.
// fallback is the message for anything unexpected.
func respondError(c *drift.Context, err error, fallback string) {
	switch {
	case errors.Is(err, collections.ErrUnauthorized):
		c.Unauthorized("not signed in as the collection owner")
	case errors.Is(err, collections.ErrCollectionNotFound):
		c.NotFound("collection not found")
	case errors.Is(err, catalog.ErrNotFound):
		c.NotFound("game not found")
	case errors.Is(err, collections.ErrInvalidName):
		c.BadRequest("name is required")
	case errors.Is(err, collections.ErrInvalidGameID):
		c.BadRequest("game id is required")
	case errors.Is(err, models.ErrConflictingPatch):
		c.BadRequest(err.Error())
	case errors.Is(err, collections.ErrNotReady):
		serviceUnavailable(c, "collections are still loading")
	case errors.Is(err, collections.ErrRegistryClosed):
		serviceUnavailable(c, "server is shutting down")
	case errors.Is(err, catalog.ErrNotConfigured):
		serviceUnavailable(c, "game catalog is not configured")
	default:
		c.InternalServerError(fallback)
	}
}

func serviceUnavailable(c *drift.Context, message string) {
	_ = c.JSON(http.StatusServiceUnavailable, map[string]string{"error": message})
}
