package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dimitrije/gamevault-api/internal/catalog"
	"github.com/dimitrije/gamevault-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

type GamesHandler struct {
	catalog CatalogInterface
	logger  *zap.Logger
}

func NewGamesHandler(catalog CatalogInterface, logger *zap.Logger) *GamesHandler {
	return &GamesHandler{
		catalog: catalog,
		logger:  logger.Named("games_handler"),
	}
}

func (h *GamesHandler) List(c *drift.Context) {
	q := catalog.GamesQuery{
		Search:     strings.TrimSpace(c.QueryParam("search")),
		Ordering:   c.QueryParam("ordering"),
		Metacritic: c.QueryParam("metacritic"),
		Dates:      c.QueryParam("dates"),
		Platforms:  c.QueryParam("platforms"),
	}

	var err error
	if q.Page, err = intParam(c, "page", 1); err != nil || q.Page < 1 {
		c.BadRequest("invalid page")
		return
	}
	if q.PageSize, err = intParam(c, "page_size", catalog.DefaultPageSize); err != nil || q.PageSize < 1 {
		c.BadRequest("invalid page_size")
		return
	}
	q.PageSize = min(q.PageSize, catalog.MaxPageSize)

	page, err := h.catalog.Games(c.Request.Context(), q)
	if err != nil {
		h.logger.Warn("catalog list failed", zap.Error(err))
		respondError(c, err, "failed to list games")
		return
	}

	_ = c.JSON(http.StatusOK, dto.GamesResponse{
		Results:  page.Results,
		Count:    page.Count,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
}

func (h *GamesHandler) Get(c *drift.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.BadRequest("game id is required")
		return
	}

	details, err := h.catalog.GameDetails(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("catalog details failed", zap.String("game_id", id), zap.Error(err))
		respondError(c, err, "failed to get game")
		return
	}

	_ = c.JSON(http.StatusOK, details)
}

func (h *GamesHandler) Popular(c *drift.Context) {
	games, err := h.catalog.Popular(c.Request.Context())
	if err != nil {
		h.logger.Warn("catalog popular failed", zap.Error(err))
		respondError(c, err, "failed to list popular games")
		return
	}

	_ = c.JSON(http.StatusOK, dto.DiscoverResponse{Results: games})
}

func (h *GamesHandler) Trending(c *drift.Context) {
	games, err := h.catalog.Trending(c.Request.Context())
	if err != nil {
		h.logger.Warn("catalog trending failed", zap.Error(err))
		respondError(c, err, "failed to list trending games")
		return
	}

	_ = c.JSON(http.StatusOK, dto.DiscoverResponse{Results: games})
}

func intParam(c *drift.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
