// Package store persists collections and streams each owner's collections as
// full snapshots.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/dimitrije/gamevault-api/internal/hub"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("collection not found")
	ErrSubscriptionClosed = errors.New("subscription closed by the change hub")
)

// Store is the collection persistence boundary. Every call is scoped to an
// owner; ids belonging to another owner behave as if they did not exist.
type Store interface {
	// Subscribe streams the owner's collections, most recently updated first.
	// Every value is a complete replacement of the previous one.
	Subscribe(ctx context.Context, ownerID uuid.UUID) (Subscription, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Collection, error)
	Create(ctx context.Context, c models.NewCollection) (*models.Collection, error)
	UpdateFields(ctx context.Context, ownerID, id uuid.UUID, patch models.CollectionPatch) error
	// BatchUpdateFields applies every update or none of them.
	BatchUpdateFields(ctx context.Context, ownerID uuid.UUID, updates []models.CollectionUpdate) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type Subscription interface {
	Snapshots() <-chan []models.Collection
	// Err is the terminal error once Snapshots is closed, nil after Close.
	Err() error
	Close()
}

type lister func(ctx context.Context) ([]models.Collection, error)

type subscription struct {
	out    chan []models.Collection
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// subscribe re-lists the owner's collections on every hub event for that owner.
func subscribe(ctx context.Context, h *hub.Hub, ownerID uuid.UUID, list lister) *subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		out:    make(chan []models.Collection, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	client := hub.NewClient(ownerID)
	h.Register(client)

	go s.run(ctx, h, client, list)
	return s
}

func (s *subscription) run(ctx context.Context, h *hub.Hub, client *hub.Client, list lister) {
	defer close(s.done)
	defer close(s.out)
	defer h.Unregister(client)

	for {
		snapshot, err := list(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.setErr(err)
			}
			return
		}
		if !s.deliver(ctx, snapshot) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case _, ok := <-client.Send:
			if !ok {
				s.setErr(ErrSubscriptionClosed)
				return
			}
		}
	}
}

// deliver replaces any snapshot the consumer has not read yet.
func (s *subscription) deliver(ctx context.Context, snapshot []models.Collection) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		select {
		case s.out <- snapshot:
			return true
		default:
		}
		select {
		case <-s.out:
		default:
		}
	}
}

func (s *subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *subscription) Snapshots() <-chan []models.Collection {
	return s.out
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() {
	s.cancel()
	<-s.done
}
