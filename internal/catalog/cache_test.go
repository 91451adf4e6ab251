package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) GameByID(ctx context.Context, id string) (*models.Game, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.ttls[key] = ttl
	return nil
}

func TestCached_MissPopulatesCache(t *testing.T) {
	next := new(mockLookup)
	cache := newMemoryCache()
	lookup := Cached(next, cache, time.Hour, zap.NewNop())
	ctx := context.Background()

	next.On("GameByID", ctx, "7").Return(&models.Game{ID: "7", Title: "Celeste"}, nil).Once()

	game, err := lookup.GameByID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Celeste", game.Title)

	game, err = lookup.GameByID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Celeste", game.Title)

	assert.Contains(t, cache.entries, "gamevault:game:7")
	assert.Equal(t, time.Hour, cache.ttls["gamevault:game:7"])
	next.AssertExpectations(t)
}

func TestCached_CacheFailureFallsBack(t *testing.T) {
	next := new(mockLookup)
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	lookup := Cached(next, cache, time.Hour, zap.NewNop())
	ctx := context.Background()

	next.On("GameByID", ctx, "7").Return(&models.Game{ID: "7"}, nil).Twice()

	for i := 0; i < 2; i++ {
		_, err := lookup.GameByID(ctx, "7")
		require.NoError(t, err)
	}
	next.AssertExpectations(t)
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	next := new(mockLookup)
	cache := newMemoryCache()
	lookup := Cached(next, cache, time.Hour, zap.NewNop())
	ctx := context.Background()

	next.On("GameByID", ctx, "404").Return(nil, ErrNotFound)

	_, err := lookup.GameByID(ctx, "404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, cache.entries)
}

func TestCached_UndecodableEntryIsReplaced(t *testing.T) {
	next := new(mockLookup)
	cache := newMemoryCache()
	cache.entries["gamevault:game:7"] = []byte("{not json")
	lookup := Cached(next, cache, time.Hour, zap.NewNop())
	ctx := context.Background()

	next.On("GameByID", ctx, "7").Return(&models.Game{ID: "7", Title: "Celeste"}, nil).Once()

	game, err := lookup.GameByID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Celeste", game.Title)

	var cached models.Game
	require.NoError(t, json.Unmarshal(cache.entries["gamevault:game:7"], &cached))
	assert.Equal(t, "Celeste", cached.Title)
}
