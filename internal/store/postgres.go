package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dimitrije/gamevault-api/internal/database"
	"github.com/dimitrije/gamevault-api/internal/hub"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const collectionColumns = `id, owner_id, name, description, game_ids, created_at, updated_at`

type Postgres struct {
	db  *database.DB
	hub *hub.Hub
}

func NewPostgres(db *database.DB, h *hub.Hub) *Postgres {
	return &Postgres{db: db, hub: h}
}

func (s *Postgres) Subscribe(ctx context.Context, ownerID uuid.UUID) (Subscription, error) {
	return subscribe(ctx, s.hub, ownerID, func(ctx context.Context) ([]models.Collection, error) {
		return s.List(ctx, ownerID)
	}), nil
}

func (s *Postgres) List(ctx context.Context, ownerID uuid.UUID) ([]models.Collection, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+collectionColumns+`
		FROM collections WHERE owner_id = $1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := make([]models.Collection, 0)
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return collections, nil
}

func (s *Postgres) Create(ctx context.Context, nc models.NewCollection) (*models.Collection, error) {
	gameIDs := models.UniqueGameIDs(nc.GameIDs)

	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO collections (owner_id, name, description, game_ids)
		VALUES ($1, $2, $3, $4)
		RETURNING `+collectionColumns,
		nc.OwnerID, nc.Name, nc.Description, gameIDs)
	c, err := scanCollection(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	s.hub.PublishCreated(c.OwnerID, c.ID)
	return c, nil
}

func (s *Postgres) UpdateFields(ctx context.Context, ownerID, id uuid.UUID, patch models.CollectionPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	query, args := buildUpdate(ownerID, id, patch)
	tag, err := s.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.hub.PublishUpdated(ownerID, id)
	return nil
}

func (s *Postgres) BatchUpdateFields(ctx context.Context, ownerID uuid.UUID, updates []models.CollectionUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	for _, u := range updates {
		if err := u.Patch.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]uuid.UUID, 0, len(updates))
	for _, u := range updates {
		query, args := buildUpdate(ownerID, u.ID, u.Patch)
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update collection %s: %w", u.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		ids = append(ids, u.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.hub.PublishUpdated(ownerID, ids...)
	return nil
}

func (s *Postgres) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM collections WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.hub.PublishDeleted(ownerID, id)
	return nil
}

// buildUpdate renders a patch as one UPDATE so set union and set difference
// happen server-side, without a read-modify-write round trip.
func buildUpdate(ownerID, id uuid.UUID, patch models.CollectionPatch) (string, []any) {
	args := []any{id, ownerID}
	sets := make([]string, 0, 4)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Name != nil {
		sets = append(sets, "name = "+next(*patch.Name))
	}
	if patch.Description != nil {
		sets = append(sets, "description = "+next(*patch.Description))
	}
	switch {
	case patch.GameIDs != nil:
		sets = append(sets, "game_ids = "+next(models.UniqueGameIDs(patch.GameIDs))+"::text[]")
	case len(patch.AddGameIDs) > 0:
		p := next(models.UniqueGameIDs(patch.AddGameIDs))
		sets = append(sets, "game_ids = game_ids || ARRAY(SELECT g FROM unnest("+p+"::text[]) AS g WHERE NOT (g = ANY(game_ids)))")
	case len(patch.RemoveGameIDs) > 0:
		p := next(patch.RemoveGameIDs)
		sets = append(sets, "game_ids = ARRAY(SELECT g FROM unnest(game_ids) AS g WHERE NOT (g = ANY("+p+"::text[])))")
	}
	sets = append(sets, "updated_at = NOW()")

	query := "UPDATE collections SET " + strings.Join(sets, ", ") + " WHERE id = $1 AND owner_id = $2"
	return query, args
}

func scanCollection(row pgx.Row) (*models.Collection, error) {
	var c models.Collection
	if err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Description,
		&c.GameIDs, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if c.GameIDs == nil {
		c.GameIDs = []string{}
	}
	return &c, nil
}
