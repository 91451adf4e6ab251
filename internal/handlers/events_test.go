package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dimitrije/gamevault-api/internal/identity"
	"github.com/dimitrije/gamevault-api/internal/middleware"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/dimitrije/gamevault-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newEventsHandler(env *testEnv) *EventsHandler {
	return NewEventsHandler(env.registry, env.jwt, nil, zap.NewNop())
}

func TestEventsHandler_FollowSendsSnapshots(t *testing.T) {
	env := newTestEnv(t)
	h := newEventsHandler(env)
	userID := uuid.New()
	agg := env.ready(t, userID)

	events := make(chan dto.StateEvent, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.follow(ctx, identity.FromAccessToken(userID, "player@example.com"),
			func(ev dto.StateEvent) error {
				events <- ev
				return nil
			},
			func() error { return nil },
		)
	}()

	first := <-events
	assert.Empty(t, first.Collections)

	_, err := agg.CreateCollection(context.Background(), "Backlog", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case ev := <-events:
			return len(ev.Collections) == 1 && ev.Collections[0].Name == "Backlog"
		default:
			return false
		}
	}, testWait, testTick)

	cancel()
	assert.NoError(t, <-done)
}

func TestEventsHandler_FollowEndsOnLogout(t *testing.T) {
	env := newTestEnv(t)
	h := newEventsHandler(env)
	userID := uuid.New()
	env.ready(t, userID)

	done := make(chan error, 1)
	sent := make(chan struct{}, 16)
	go func() {
		done <- h.follow(context.Background(), identity.FromAccessToken(userID, "player@example.com"),
			func(dto.StateEvent) error {
				sent <- struct{}{}
				return nil
			},
			func() error { return nil },
		)
	}()
	<-sent

	require.True(t, env.registry.Release(userID))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testWait):
		t.Fatal("stream did not end after logout")
	}
}

func TestEventsHandler_HeartbeatKeepsSessionAlive(t *testing.T) {
	env := newTestEnv(t)
	h := newEventsHandler(env)
	h.heartbeat = 10 * time.Millisecond
	userID := uuid.New()
	env.ready(t, userID)

	pings := make(chan struct{}, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.follow(ctx, identity.FromAccessToken(userID, "player@example.com"),
			func(dto.StateEvent) error { return nil },
			func() error {
				select {
				case pings <- struct{}{}:
				default:
				}
				return nil
			},
		)
	}()

	for range 2 {
		select {
		case <-pings:
		case <-time.After(testWait):
			t.Fatal("no heartbeat")
		}
	}
	assert.Equal(t, 1, env.registry.Len())

	cancel()
	assert.NoError(t, <-done)
}

func TestEventsHandler_StreamOverSSE(t *testing.T) {
	env := newTestEnv(t)
	h := newEventsHandler(env)
	userID := uuid.New()
	agg := env.ready(t, userID)
	_, err := env.store.Create(context.Background(), models.NewCollection{OwnerID: userID, Name: "Wishlist", GameIDs: []string{"42"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return agg.IsSaved("42") }, testWait, testTick)

	app := drift.New()
	app.Use(middleware.Auth(env.jwt, nil))
	app.Get("/events/collections", h.Stream)
	srv := httptest.NewServer(app)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/collections", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.token(t, userID))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot dto.StateEvent
	scanner := bufio.NewScanner(resp.Body)
	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event:"); ok {
			event = strings.TrimSpace(name)
			continue
		}
		if data, ok := strings.CutPrefix(line, "data:"); ok && event == snapshotEvent {
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(data)), &snapshot))
			break
		}
	}

	require.Len(t, snapshot.Collections, 1)
	assert.Equal(t, "Wishlist", snapshot.Collections[0].Name)
	require.Len(t, snapshot.Games, 1)
	assert.Equal(t, "42", snapshot.Games[0].ID)
}

func TestEventsHandler_SocketRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	h := newEventsHandler(env)

	app := drift.New()
	app.Get("/ws/collections", h.Socket)

	rec := doJSON(t, app, http.MethodGet, "/ws/collections", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token is required")

	rec = doJSON(t, app, http.MethodGet, "/ws/collections?token=bogus", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired token")
}
