package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/gamevault")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessExpiry)
	assert.Equal(t, "https://api.rawg.io/api", cfg.Catalog.BaseURL)
	assert.Equal(t, 3, cfg.Catalog.MaxRetries)
	assert.Equal(t, time.Second, cfg.Catalog.RetryDelay)
	assert.Equal(t, "My Collection", cfg.DefaultCollectionName)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.CacheEnabled())
	assert.False(t, cfg.UsesMemoryStore())
}

func TestLoad_ProductionUsesJSONLogs(t *testing.T) {
	t.Setenv("DATABASE_URL", "memory://")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ENV", "production")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CATALOG_RETRY_DELAY", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.CacheEnabled())
	assert.True(t, cfg.UsesMemoryStore())
	assert.Equal(t, 250*time.Millisecond, cfg.Catalog.RetryDelay)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "memory://")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
