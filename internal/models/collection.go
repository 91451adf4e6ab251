package models

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// AllCollectionsID addresses the virtual union of every collection an owner has.
// It can never collide with a store-assigned id, which is always a UUID.
const AllCollectionsID = "all"

var ErrConflictingPatch = errors.New("patch may replace, add or remove game ids, not several at once")

type Collection struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	GameIDs     []string  `json:"game_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Contains reports whether gameID is a member of the collection.
func (c *Collection) Contains(gameID string) bool {
	return slices.Contains(c.GameIDs, gameID)
}

// Clone returns a copy that shares no slices or pointers with c.
func (c Collection) Clone() Collection {
	out := c
	out.GameIDs = slices.Clone(c.GameIDs)
	if c.GameIDs == nil {
		out.GameIDs = []string{}
	}
	if c.Description != nil {
		d := *c.Description
		out.Description = &d
	}
	return out
}

// NewCollection is a collection before the store assigns its id and timestamps.
type NewCollection struct {
	OwnerID     uuid.UUID
	Name        string
	Description *string
	GameIDs     []string
}

// CollectionPatch is a field-level update. Nil fields are left untouched.
// At most one of GameIDs, AddGameIDs and RemoveGameIDs may be set.
type CollectionPatch struct {
	Name          *string
	Description   *string
	GameIDs       []string
	AddGameIDs    []string
	RemoveGameIDs []string
}

func (p CollectionPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil &&
		p.GameIDs == nil && len(p.AddGameIDs) == 0 && len(p.RemoveGameIDs) == 0
}

func (p CollectionPatch) Validate() error {
	n := 0
	if p.GameIDs != nil {
		n++
	}
	if len(p.AddGameIDs) > 0 {
		n++
	}
	if len(p.RemoveGameIDs) > 0 {
		n++
	}
	if n > 1 {
		return ErrConflictingPatch
	}
	return nil
}

// Apply mutates c the way the store applies the patch server-side.
func (p CollectionPatch) Apply(c *Collection) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		d := *p.Description
		c.Description = &d
	}
	switch {
	case p.GameIDs != nil:
		c.GameIDs = UniqueGameIDs(p.GameIDs)
	case len(p.AddGameIDs) > 0:
		c.GameIDs = UnionGameIDs(c.GameIDs, p.AddGameIDs)
	case len(p.RemoveGameIDs) > 0:
		c.GameIDs = DifferenceGameIDs(c.GameIDs, p.RemoveGameIDs)
	}
}

type CollectionUpdate struct {
	ID    uuid.UUID
	Patch CollectionPatch
}

// UniqueGameIDs drops empty and repeated ids, keeping first occurrence order.
func UniqueGameIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func UnionGameIDs(current, add []string) []string {
	return UniqueGameIDs(append(slices.Clone(current), add...))
}

func DifferenceGameIDs(current, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	out := make([]string, 0, len(current))
	for _, id := range current {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
