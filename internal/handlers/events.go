package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/dimitrije/gamevault-api/internal/collections"
	"github.com/dimitrije/gamevault-api/internal/identity"
	"github.com/dimitrije/gamevault-api/internal/middleware"
	"github.com/dimitrije/gamevault-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/websocket"
	"go.uber.org/zap"
)

const (
	eventsHeartbeat  = 30 * time.Second
	socketWriteWait  = 10 * time.Second
	socketReadWait   = 60 * time.Second
	snapshotEvent    = "snapshot"
	heartbeatEvent   = "ping"
	connectedMessage = "connected"
)

var errStreamReplaced = errors.New("aggregator was replaced")

// EventsHandler streams aggregator snapshots to clients, over SSE or a websocket.
type EventsHandler struct {
	registry  RegistryInterface
	tokens    middleware.TokenValidator
	keys      middleware.APIKeyValidator
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewEventsHandler builds the handler. keys may be nil when API keys are disabled.
func NewEventsHandler(registry RegistryInterface, tokens middleware.TokenValidator, keys middleware.APIKeyValidator, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		registry:  registry,
		tokens:    tokens,
		keys:      keys,
		heartbeat: eventsHeartbeat,
		logger:    logger.Named("events_handler"),
	}
}

// Stream is the SSE endpoint. It sends one snapshot on connect and another
// after every change until the client leaves or the aggregator stops.
func (h *EventsHandler) Stream(c *drift.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}
	// Fail before the stream headers go out.
	if _, err := h.registry.Acquire(p); err != nil {
		respondError(c, err, "failed to open collections")
		return
	}

	sseCtx := c.SSE()
	if err := sseCtx.SendJSON(map[string]string{"type": connectedMessage}, "system", ""); err != nil {
		return
	}

	err := h.follow(c.Request.Context(), p,
		func(ev dto.StateEvent) error { return sseCtx.SendJSON(ev, snapshotEvent, "") },
		func() error { return sseCtx.Send("{}", heartbeatEvent, "") },
	)
	h.finished(p, err)
}

// Socket is the websocket endpoint. Browsers cannot set headers on an
// upgrade, so the credential comes in the token query parameter.
func (h *EventsHandler) Socket(c *drift.Context) {
	token := c.QueryParam("token")
	if token == "" {
		c.Unauthorized("token is required")
		return
	}
	p, err := middleware.Authenticate(c.Request.Context(), h.tokens, h.keys, token)
	if err != nil {
		c.Unauthorized(err.Error())
		return
	}
	if _, err := h.registry.Acquire(p); err != nil {
		respondError(c, err, "failed to open collections")
		return
	}

	conn, err := websocket.Upgrade(c)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() {
		if err := conn.Close(websocket.CloseNormalClosure, ""); err != nil {
			h.logger.Debug("websocket close", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Read pump: only detects the client going away.
	go func() {
		defer cancel()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(socketReadWait))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		return conn.WriteJSON(v)
	}
	if err := write(map[string]string{"type": connectedMessage}); err != nil {
		return
	}

	err = h.follow(ctx, p,
		func(ev dto.StateEvent) error {
			return write(map[string]any{"type": snapshotEvent, "data": ev})
		},
		func() error {
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			return conn.Ping(nil)
		},
	)
	h.finished(p, err)
}

// follow sends the principal's snapshot now and after every change. Each
// heartbeat pings the client and keeps the registry entry from going idle.
func (h *EventsHandler) follow(ctx context.Context, p identity.Principal, send func(dto.StateEvent) error, ping func() error) error {
	agg, err := h.registry.Acquire(p)
	if err != nil {
		return err
	}
	changes, stop := agg.Watch()
	defer stop()

	if err := send(stateEvent(agg.Snapshot())); err != nil {
		return err
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := send(stateEvent(agg.Snapshot())); err != nil {
				return err
			}
		case <-ticker.C:
			current, err := h.registry.Acquire(p)
			if err != nil {
				return err
			}
			if current != agg {
				return errStreamReplaced
			}
			if err := ping(); err != nil {
				return err
			}
		}
	}
}

func (h *EventsHandler) finished(p identity.Principal, err error) {
	if err == nil || errors.Is(err, errStreamReplaced) || errors.Is(err, collections.ErrRegistryClosed) {
		return
	}
	h.logger.Debug("event stream ended", zap.String("user_id", p.UserID.String()), zap.Error(err))
}

func stateEvent(s collections.State) dto.StateEvent {
	return dto.StateEvent{
		Collections: dto.NewCollectionResponses(s.Collections),
		Games:       s.Games,
		Loading:     s.Loading,
		Error:       errorMessage(s.Err),
	}
}
