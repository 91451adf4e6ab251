package collections

import (
	"errors"
	"fmt"

	"github.com/dimitrije/gamevault-api/internal/store"
)

var (
	ErrUnauthorized       = errors.New("not signed in as the collection owner")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrInvalidName        = errors.New("collection name must not be empty")
	ErrInvalidGameID      = errors.New("game id must not be empty")
	ErrNotReady           = errors.New("collections are still loading")
	ErrStore              = errors.New("collection store error")
)

// storeError maps a store failure onto the aggregator's error taxonomy.
func storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrCollectionNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}
