package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/gamevault-api/internal/catalog"
	"github.com/dimitrije/gamevault-api/internal/collections"
	"github.com/dimitrije/gamevault-api/internal/hub"
	"github.com/dimitrije/gamevault-api/internal/identity"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/dimitrije/gamevault-api/internal/services"
	"github.com/dimitrije/gamevault-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GameByID(ctx context.Context, id string) (*models.Game, error) {
	return &models.Game{ID: id, Title: "Game " + id}, nil
}

func (m *mockCatalog) Games(ctx context.Context, q catalog.GamesQuery) (*models.GamesPage, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GamesPage), args.Error(1)
}

func (m *mockCatalog) GameDetails(ctx context.Context, id string) (*models.GameDetails, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameDetails), args.Error(1)
}

func (m *mockCatalog) Popular(ctx context.Context) ([]models.Game, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Game), args.Error(1)
}

func (m *mockCatalog) Trending(ctx context.Context) ([]models.Game, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Game), args.Error(1)
}

type testEnv struct {
	jwt      *services.JWTService
	store    *store.Memory
	registry *collections.Registry
	catalog  *mockCatalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub()
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	cat := new(mockCatalog)
	mem := store.NewMemory(h)
	registry := collections.NewRegistry(mem, cat, time.Minute, collections.Options{
		DefaultCollectionName: "My Collection",
		Logger:                zap.NewNop(),
	})

	t.Cleanup(func() {
		registry.Close()
		cancel()
		<-done
	})

	return &testEnv{
		jwt:      services.NewJWTService("test-secret-key", 15*time.Minute),
		store:    mem,
		registry: registry,
		catalog:  cat,
	}
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := e.jwt.IssueAccessToken(userID, "player@example.com")
	require.NoError(t, err)
	return tok.Token
}

// ready starts the user's aggregator and waits for its first snapshot.
func (e *testEnv) ready(t *testing.T, userID uuid.UUID) *collections.Aggregator {
	t.Helper()
	agg, err := e.registry.Acquire(identity.FromAccessToken(userID, "player@example.com"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !agg.Loading() }, testWait, testTick)
	return agg
}

func doJSON(t *testing.T, app http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

const (
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)
