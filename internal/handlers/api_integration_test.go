package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dimitrije/gamevault-api/internal/collections"
	"github.com/dimitrije/gamevault-api/internal/hub"
	"github.com/dimitrije/gamevault-api/internal/identity"
	"github.com/dimitrije/gamevault-api/internal/services"
	"github.com/dimitrije/gamevault-api/internal/store"
	"github.com/dimitrije/gamevault-api/internal/testutil"
	"github.com/dimitrije/gamevault-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAPI_Postgres(t *testing.T) {
	tdb := testutil.SetupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub()
	hubDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(hubDone)
	}()

	registry := collections.NewRegistry(store.NewPostgres(tdb.DB, h), new(mockCatalog), time.Minute, collections.Options{
		DefaultCollectionName: "My Collection",
		Logger:                zap.NewNop(),
	})
	t.Cleanup(func() {
		registry.Close()
		cancel()
		<-hubDone
	})

	apiKeys := services.NewAPIKeyService(tdb.DB)
	router := NewRouter(RouterConfig{
		Tokens:   testutil.TestJWTService(),
		APIKeys:  apiKeys,
		Registry: registry,
		Catalog:  new(mockCatalog),
		Logger:   zap.NewNop(),
	})
	fixtures := testutil.NewFixtures(tdb.DB)

	open := func(t *testing.T, userID uuid.UUID) *collections.Aggregator {
		t.Helper()
		agg, err := registry.Acquire(identity.FromAccessToken(userID, "player@example.com"))
		require.NoError(t, err)
		require.Eventually(t, func() bool { return !agg.Loading() }, 5*time.Second, 10*time.Millisecond)
		return agg
	}

	t.Run("add to all updates every collection", func(t *testing.T) {
		tdb.CleanTables(t)
		userID := uuid.New()
		fixtures.CreateCollection(t, userID, testutil.WithCollectionName("A"), testutil.WithGames("1"))
		fixtures.CreateCollection(t, userID, testutil.WithCollectionName("B"))
		agg := open(t, userID)
		client := testutil.NewHTTPTestClient(t, router).As(testutil.GenerateTestToken(t, userID, "player@example.com"))

		testutil.AssertStatus(t, client.PUT("/api/v1/collections/all/games/9"), http.StatusOK)

		require.Eventually(t, func() bool {
			return len(agg.CollectionsContaining("9")) == 2
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("api key acts as its owner", func(t *testing.T) {
		tdb.CleanTables(t)
		userID := uuid.New()
		fixtures.CreateCollection(t, userID, testutil.WithCollectionName("Mine"), testutil.WithGames("5"))
		open(t, userID)

		tokenClient := testutil.NewHTTPTestClient(t, router).As(testutil.GenerateTestToken(t, userID, "player@example.com"))
		rec := tokenClient.POST("/api/v1/api-keys", dto.CreateAPIKeyRequest{Name: "script"})
		testutil.AssertStatus(t, rec, http.StatusCreated)
		var created dto.APIKeyCreatedResponse
		testutil.ParseJSON(t, rec, &created)
		assert.True(t, services.IsAPIKey(created.Key))

		keyClient := testutil.NewHTTPTestClient(t, router).As(created.Key)
		rec = keyClient.GET("/api/v1/collections")
		testutil.AssertStatus(t, rec, http.StatusOK)
		var list dto.CollectionsResponse
		testutil.ParseJSON(t, rec, &list)
		require.Len(t, list.Collections, 1)
		assert.Equal(t, "Mine", list.Collections[0].Name)

		testutil.AssertStatus(t, tokenClient.DELETE("/api/v1/api-keys/"+created.ID.String()), http.StatusOK)
		testutil.AssertStatus(t, keyClient.GET("/api/v1/collections"), http.StatusUnauthorized)
	})

	t.Run("foreign collections are invisible", func(t *testing.T) {
		tdb.CleanTables(t)
		owner := uuid.New()
		other := uuid.New()
		theirs := fixtures.CreateCollection(t, owner, testutil.WithCollectionName("Theirs"))
		open(t, other)
		client := testutil.NewHTTPTestClient(t, router).As(testutil.GenerateTestToken(t, other, "other@example.com"))

		testutil.AssertStatus(t, client.DELETE("/api/v1/collections/"+theirs.ID.String()), http.StatusNotFound)

		stored, err := store.NewPostgres(tdb.DB, h).List(context.Background(), owner)
		require.NoError(t, err)
		require.Len(t, stored, 1)
	})
}
