package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCollectionCreated EventType = "collection_created"
	EventCollectionUpdated EventType = "collection_updated"
	EventCollectionDeleted EventType = "collection_deleted"
)

// Event says that some of an owner's collections changed. Receivers re-read
// the owner's collections; the event does not carry the new state.
type Event struct {
	Type          EventType   `json:"type"`
	OwnerID       uuid.UUID   `json:"owner_id"`
	CollectionIDs []uuid.UUID `json:"collection_ids"`
}

type Client struct {
	ID      string
	OwnerID uuid.UUID
	// Send holds at most one pending event. A full buffer already means
	// "re-read", so further events are dropped without losing anything.
	Send chan Event
}

func NewClient(ownerID uuid.UUID) *Client {
	return &Client{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Send:    make(chan Event, 1),
	}
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

// Run dispatches until ctx ends. Every client still registered at that point
// has its Send channel closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			close(h.done)
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if client.OwnerID != ev.OwnerID {
					continue
				}
				select {
				case client.Send <- ev:
				default:
					// pending event already queued
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds the client. After the hub stopped, the client's Send channel
// is closed right away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Publish(ev Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

func (h *Hub) PublishCreated(ownerID, collectionID uuid.UUID) {
	h.Publish(Event{Type: EventCollectionCreated, OwnerID: ownerID, CollectionIDs: []uuid.UUID{collectionID}})
}

func (h *Hub) PublishUpdated(ownerID uuid.UUID, collectionIDs ...uuid.UUID) {
	h.Publish(Event{Type: EventCollectionUpdated, OwnerID: ownerID, CollectionIDs: collectionIDs})
}

func (h *Hub) PublishDeleted(ownerID, collectionID uuid.UUID) {
	h.Publish(Event{Type: EventCollectionDeleted, OwnerID: ownerID, CollectionIDs: []uuid.UUID{collectionID}})
}

// ClientCount returns the number of registered clients for an owner.
func (h *Hub) ClientCount(ownerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, client := range h.clients {
		if client.OwnerID == ownerID {
			n++
		}
	}
	return n
}
