package handlers

import (
	"net/http"

	"github.com/dimitrije/gamevault-api/internal/middleware"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Production bool
	Tokens     middleware.TokenValidator
	// APIKeys is nil when API keys are disabled.
	APIKeys  APIKeyManager
	Registry RegistryInterface
	Catalog  CatalogInterface
	// CatalogState is reported by the health check.
	CatalogState func() string
	Logger       *zap.Logger
}

// NewRouter mounts every route under /api/v1.
func NewRouter(cfg RouterConfig) http.Handler {
	var keys middleware.APIKeyValidator
	if cfg.APIKeys != nil {
		keys = cfg.APIKeys
	}

	collectionsHandler := NewCollectionsHandler(cfg.Registry, cfg.Logger)
	gamesHandler := NewGamesHandler(cfg.Catalog, cfg.Logger)
	eventsHandler := NewEventsHandler(cfg.Registry, cfg.Tokens, keys, cfg.Logger)

	app := drift.New()

	if cfg.Production {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(driftmw.Recovery())
	app.Use(driftmw.CORSWithConfig(driftmw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))
	app.Use(driftmw.BodyParser())

	api := app.Group("/api/v1")

	api.Get("/health", func(c *drift.Context) {
		status := map[string]string{"status": "ok"}
		if cfg.CatalogState != nil {
			status["catalog"] = cfg.CatalogState()
		}
		_ = c.JSON(http.StatusOK, status)
	})
	api.Get("/ws/collections", eventsHandler.Socket)

	protected := api.Group("")
	protected.Use(middleware.Auth(cfg.Tokens, keys))

	protected.Get("/games", gamesHandler.List)
	protected.Get("/games/:id", gamesHandler.Get)
	protected.Get("/games/:id/saved", collectionsHandler.Saved)
	protected.Get("/discover/popular", gamesHandler.Popular)
	protected.Get("/discover/trending", gamesHandler.Trending)

	protected.Get("/collections", collectionsHandler.List)
	protected.Post("/collections", collectionsHandler.Create)
	protected.Patch("/collections/:collectionId", collectionsHandler.Update)
	protected.Delete("/collections/:collectionId", collectionsHandler.Delete)
	protected.Get("/collections/:collectionId/games", collectionsHandler.Games)
	protected.Put("/collections/:collectionId/games/:gameId", collectionsHandler.AddGame)
	protected.Delete("/collections/:collectionId/games/:gameId", collectionsHandler.RemoveGame)

	protected.Get("/events/collections", eventsHandler.Stream)
	protected.Post("/session/logout", collectionsHandler.Logout)

	if cfg.APIKeys != nil {
		apiKeyHandler := NewAPIKeyHandler(cfg.APIKeys)
		protected.Get("/api-keys", apiKeyHandler.List)
		protected.Post("/api-keys", apiKeyHandler.Create)
		protected.Delete("/api-keys/:keyId", apiKeyHandler.Revoke)
	}

	return app
}
