package sqlstore_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/sqlstore"
	"github.com/Ramsey-B/fern/internal/testutil"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

func newStore(t *testing.T) *sqlstore.Store {
	return sqlstore.New(testutil.SQLite(t), testutil.Logger())
}

func TestStore_EntityRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var attrs models.Attributes
	require.NoError(t, json.Unmarshal([]byte(`{
		"email": "jane@example.com",
		"age": 41,
		"verified": true,
		"aliases": ["JD", "Janie"],
		"social": {"github": "jane", "links": [1, 2, {"deep": null}]}
	}`), &attrs))

	created := testutil.Entity(t, s, "", "folder-1", "person", "Jane Doe", attrs)
	assert.NotEmpty(t, created.ID)

	got, err := s.GetEntity(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.Equal(t, "folder-1", got.FolderID)
	assert.True(t, attrs.Equal(got.Attributes), "got %s", models.Object(got.Attributes))
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	missing, err := s.GetEntity(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_ListEntities(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	testutil.Entity(t, s, "b", "folder-1", "person", "B", nil)
	testutil.Entity(t, s, "a", "folder-1", "place", "A", nil)
	testutil.Entity(t, s, "c", "folder-1", "person", "C", nil)
	testutil.Entity(t, s, "z", "folder-2", "person", "Z", nil)

	all, err := s.ListEntities(ctx, "folder-1", models.EntityFilter{})
	require.NoError(t, err)
	ids := []string{}
	for _, e := range all {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)

	people, err := s.ListEntities(ctx, "folder-1", models.EntityFilter{Type: "person"})
	require.NoError(t, err)
	assert.Len(t, people, 2)

	empty, err := s.ListEntities(ctx, "nope", models.EntityFilter{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_CreateRelationshipRejectsSelfLoop(t *testing.T) {
	s := newStore(t)
	testutil.Entity(t, s, "a", "folder-1", "person", "A", nil)

	_, err := s.CreateRelationship(context.Background(), &models.Relationship{FromEntity: "a", ToEntity: "a", Type: "knows"})
	assert.True(t, ferrors.IsValidation(err))
}

func TestTx_RepointDedupeAndSelfLoops(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	testutil.Entity(t, s, "t", "folder-1", "person", "T", nil)
	testutil.Entity(t, s, "s", "folder-1", "person", "S", nil)
	testutil.Entity(t, s, "x", "folder-1", "organization", "X", nil)
	testutil.Relationship(t, s, "r1", "t", "x", "works_at")
	testutil.Relationship(t, s, "r2", "s", "x", "works_at")
	testutil.Relationship(t, s, "r3", "x", "s", "employs")
	testutil.Relationship(t, s, "r4", "s", "t", "knows")
	testutil.File(t, s, "f1", "s", "a.txt")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := tx.RepointRelationships(ctx, "s", "t")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = tx.DeleteSelfLoops(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = tx.DedupeRelationships(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = tx.RepointFiles(ctx, "s", "t")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := tx.DeleteEntity(ctx, "s")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = tx.DeleteEntity(ctx, "s")
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Commit(ctx), "commit is idempotent")
	require.NoError(t, tx.Rollback(ctx), "rollback after commit is a no-op")

	rels, err := s.ListRelationships(ctx, "t")
	require.NoError(t, err)
	got := map[string]string{}
	for _, r := range rels {
		got[r.ID] = r.FromEntity + "->" + r.ToEntity
	}
	assert.Equal(t, map[string]string{"r1": "t->x", "r3": "x->t"}, got)
}

func TestTx_RollbackDiscardsChanges(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	testutil.Entity(t, s, "t", "folder-1", "person", "T", nil)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	name := "Renamed"
	updated, err := tx.UpdateEntity(ctx, "t", models.EntityUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx))

	got, err := s.GetEntity(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "T", got.Name)
}

func TestTx_UpdateMissingEntity(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.UpdateEntity(ctx, "ghost", models.EntityUpdate{Attributes: models.Attributes{}})
	assert.True(t, ferrors.IsNotFound(err))
}
