package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/dimitrije/gamevault-api/internal/database"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var collectionRowColumns = []string{
	"id", "owner_id", "name", "description", "game_ids", "created_at", "updated_at",
}

func setupPostgresStore(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	db := &database.DB{Pool: mock}
	return NewPostgres(db, startHub(t)), mock
}

func TestPostgres_Create(t *testing.T) {
	s, mock := setupPostgresStore(t)
	ctx := context.Background()
	owner := uuid.New()
	id := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows(collectionRowColumns).
		AddRow(id, owner, "Favourites", (*string)(nil), []string{"42"}, now, now)

	mock.ExpectQuery(`INSERT INTO collections`).
		WithArgs(owner, "Favourites", (*string)(nil), []string{"42"}).
		WillReturnRows(rows)

	col, err := s.Create(ctx, models.NewCollection{OwnerID: owner, Name: "Favourites", GameIDs: []string{"42", "42"}})

	require.NoError(t, err)
	assert.Equal(t, id, col.ID)
	assert.Equal(t, owner, col.OwnerID)
	assert.Equal(t, []string{"42"}, col.GameIDs)
	assert.Nil(t, col.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_List(t *testing.T) {
	s, mock := setupPostgresStore(t)
	ctx := context.Background()
	owner := uuid.New()
	now := time.Now()
	desc := "co-op"

	rows := pgxmock.NewRows(collectionRowColumns).
		AddRow(uuid.New(), owner, "Recent", &desc, []string{"1", "2"}, now, now).
		AddRow(uuid.New(), owner, "Older", (*string)(nil), []string(nil), now, now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT .+ FROM collections WHERE owner_id = \$1\s+ORDER BY updated_at DESC`).
		WithArgs(owner).
		WillReturnRows(rows)

	list, err := s.List(ctx, owner)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Recent", list[0].Name)
	assert.Equal(t, "co-op", *list[0].Description)
	assert.Equal(t, []string{}, list[1].GameIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_List_Error(t *testing.T) {
	s, mock := setupPostgresStore(t)
	owner := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM collections`).
		WithArgs(owner).
		WillReturnError(errors.New("connection reset"))

	_, err := s.List(context.Background(), owner)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list collections")
}

func TestPostgres_UpdateFields_AddIsServerSideUnion(t *testing.T) {
	s, mock := setupPostgresStore(t)
	owner := uuid.New()
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE collections SET game_ids = game_ids || ARRAY(SELECT g FROM unnest($3::text[]) AS g WHERE NOT (g = ANY(game_ids))), updated_at = NOW() WHERE id = $1 AND owner_id = $2`)).
		WithArgs(id, owner, []string{"7"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateFields(context.Background(), owner, id, models.CollectionPatch{AddGameIDs: []string{"7"}})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateFields_NotFound(t *testing.T) {
	s, mock := setupPostgresStore(t)
	owner := uuid.New()
	id := uuid.New()
	name := "Renamed"

	mock.ExpectExec(`UPDATE collections SET name = \$3, updated_at = NOW\(\)`).
		WithArgs(id, owner, "Renamed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateFields(context.Background(), owner, id, models.CollectionPatch{Name: &name})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_BatchUpdateFields_Commit(t *testing.T) {
	s, mock := setupPostgresStore(t)
	owner := uuid.New()
	a, b := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE collections`).
		WithArgs(a, owner, []string{"5"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE collections`).
		WithArgs(b, owner, []string{"5"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.BatchUpdateFields(context.Background(), owner, []models.CollectionUpdate{
		{ID: a, Patch: models.CollectionPatch{RemoveGameIDs: []string{"5"}}},
		{ID: b, Patch: models.CollectionPatch{RemoveGameIDs: []string{"5"}}},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_BatchUpdateFields_RollbackOnMissingMember(t *testing.T) {
	s, mock := setupPostgresStore(t)
	owner := uuid.New()
	a, b := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE collections`).
		WithArgs(a, owner, []string{"5"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE collections`).
		WithArgs(b, owner, []string{"5"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.BatchUpdateFields(context.Background(), owner, []models.CollectionUpdate{
		{ID: a, Patch: models.CollectionPatch{AddGameIDs: []string{"5"}}},
		{ID: b, Patch: models.CollectionPatch{AddGameIDs: []string{"5"}}},
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_BatchUpdateFields_Empty(t *testing.T) {
	s, mock := setupPostgresStore(t)

	require.NoError(t, s.BatchUpdateFields(context.Background(), uuid.New(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete(t *testing.T) {
	s, mock := setupPostgresStore(t)
	owner := uuid.New()
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM collections WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(id, owner).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Delete(context.Background(), owner, id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete_NotFound(t *testing.T) {
	s, mock := setupPostgresStore(t)
	owner := uuid.New()
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM collections`).
		WithArgs(id, owner).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, s.Delete(context.Background(), owner, id), ErrNotFound)
}

func TestBuildUpdate(t *testing.T) {
	owner := uuid.New()
	id := uuid.New()
	name := "N"
	desc := "D"

	query, args := buildUpdate(owner, id, models.CollectionPatch{Name: &name, Description: &desc, GameIDs: []string{"1", "1", "2"}})
	assert.Equal(t, "UPDATE collections SET name = $3, description = $4, game_ids = $5::text[], updated_at = NOW() WHERE id = $1 AND owner_id = $2", query)
	assert.Equal(t, []any{id, owner, "N", "D", []string{"1", "2"}}, args)

	query, args = buildUpdate(owner, id, models.CollectionPatch{RemoveGameIDs: []string{"9"}})
	assert.Equal(t, "UPDATE collections SET game_ids = ARRAY(SELECT g FROM unnest(game_ids) AS g WHERE NOT (g = ANY($3::text[]))), updated_at = NOW() WHERE id = $1 AND owner_id = $2", query)
	assert.Equal(t, []any{id, owner, []string{"9"}}, args)

	query, _ = buildUpdate(owner, id, models.CollectionPatch{})
	assert.Equal(t, "UPDATE collections SET updated_at = NOW() WHERE id = $1 AND owner_id = $2", query)
}
