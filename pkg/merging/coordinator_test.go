package merging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/memstore"
	"github.com/Ramsey-B/fern/internal/repositories/sqlstore"
	"github.com/Ramsey-B/fern/internal/testutil"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/storage"
)

// testStore is a storage collaborator that can also seed fixtures
type testStore interface {
	storage.Store
	testutil.Seeder
	ListFiles(ctx context.Context, entityID string) ([]models.File, error)
}

var stores = []struct {
	name string
	open func(t *testing.T) testStore
}{
	{"memstore", func(t *testing.T) testStore { return memstore.New() }},
	{"sqlite", func(t *testing.T) testStore { return sqlstore.New(testutil.SQLite(t), testutil.Logger()) }},
}

// failingStore fails RepointRelationships for one source id
type failingStore struct {
	testStore
	failOn string
	err    error
}

func (s *failingStore) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.testStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, failOn: s.failOn, err: s.err}, nil
}

type failingTx struct {
	storage.Tx
	failOn string
	err    error
}

func (t *failingTx) RepointRelationships(ctx context.Context, sourceID, targetID string) (int64, error) {
	if sourceID == t.failOn {
		return 0, t.err
	}
	return t.Tx.RepointRelationships(ctx, sourceID, targetID)
}

func person(t *testing.T, s testStore, id, name, email string) *models.Entity {
	attrs := models.Attributes{}
	if email != "" {
		attrs["email"] = models.String(email)
	}
	return testutil.Entity(t, s, id, "folder-1", "person", name, attrs)
}

func assertGone(t *testing.T, s storage.Reader, ids ...string) {
	t.Helper()
	for _, id := range ids {
		e, err := s.GetEntity(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, e, "entity %s should be gone", id)
	}
}

func TestCoordinator_Validation(t *testing.T) {
	s := memstore.New()
	person(t, s, "t", "Target", "")
	person(t, s, "s1", "Source", "")
	c := merging.NewCoordinator(s, testutil.Logger())
	ctx := context.Background()

	tests := []struct {
		name    string
		target  string
		sources []string
		opts    models.MergeOptions
	}{
		{"merge into itself", "t", []string{"t"}, models.MergeOptions{}},
		{"no sources", "t", nil, models.MergeOptions{}},
		{"duplicate sources", "t", []string{"s1", "s1"}, models.MergeOptions{}},
		{"empty target", "", []string{"s1"}, models.MergeOptions{}},
		{"empty source id", "t", []string{""}, models.MergeOptions{}},
		{"invalid strategy", "t", []string{"s1"}, models.MergeOptions{Strategy: "newest"}},
		{"invalid prefer", "t", []string{"s1"}, models.MergeOptions{Prefer: "both"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.Merge(ctx, tt.target, tt.sources, tt.opts)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, ferrors.IsValidation(err))
			assert.Equal(t, 400, ferrors.StatusCode(err))
		})
	}

	src, err := s.GetEntity(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, src)
}

func TestCoordinator_MergeRepointsEverything(t *testing.T) {
	for _, store := range stores {
		t.Run(store.name, func(t *testing.T) {
			s := store.open(t)
			ctx := context.Background()

			person(t, s, "t", "Jon", "jon@example.com")
			testutil.Entity(t, s, "s1", "folder-1", "person", "Jonathan Smith", models.Attributes{
				"email": models.String("JON@example.com"),
				"tags":  models.Strings("a", "b"),
			})
			testutil.Entity(t, s, "s2", "folder-1", "person", "J. Smith", models.Attributes{
				"tags":  models.Strings("b", "c"),
				"phone": models.String("+1 555 0100"),
			})
			testutil.Entity(t, s, "x", "folder-1", "organization", "Acme", nil)
			testutil.Entity(t, s, "y", "folder-1", "place", "Paris", nil)

			testutil.Relationship(t, s, "r1", "t", "x", "works_at")
			testutil.Relationship(t, s, "r2", "s1", "x", "works_at")
			testutil.Relationship(t, s, "r3", "s1", "t", "knows")
			testutil.Relationship(t, s, "r4", "y", "s2", "located")
			testutil.Relationship(t, s, "r5", "s2", "s1", "knows")
			testutil.File(t, s, "f1", "s1", "passport.pdf")
			testutil.File(t, s, "f2", "s2", "photo.jpg")

			c := merging.NewCoordinator(s, testutil.Logger())
			result, err := c.Merge(ctx, "t", []string{"s1", "s2"}, models.MergeOptions{})
			require.NoError(t, err)

			assert.Equal(t, []string{"s1", "s2"}, result.MergedIDs)
			assert.Empty(t, result.SkippedIDs)
			assert.Len(t, result.Sources, 2)
			assert.Equal(t, "Jonathan Smith", result.Entity.Name)
			assert.Equal(t, []string{"s1", "s2"}, result.Entity.MergedFrom())
			assert.True(t, models.Strings("a", "b", "c").Equal(result.Entity.Attributes["tags"]))
			assert.Equal(t, int64(2), result.Stats.FilesMoved)
			assert.Equal(t, int64(1), result.Stats.DuplicatesRemoved)
			assert.Equal(t, int64(2), result.Stats.SelfLoopsRemoved)

			assertGone(t, s, "s1", "s2")

			stored, err := s.GetEntity(ctx, "t")
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, "Jonathan Smith", stored.Name)
			assert.Equal(t, []string{"s1", "s2"}, stored.MergedFrom())
			phone, _ := stored.Attributes.GetString("phone")
			assert.Equal(t, "+1 555 0100", phone)

			rels, err := s.ListRelationships(ctx, "t")
			require.NoError(t, err)
			type edge struct{ from, to, typ string }
			seen := map[edge]bool{}
			for _, r := range rels {
				assert.NotEqual(t, r.FromEntity, r.ToEntity, "self loop left behind: %s", r.ID)
				assert.NotContains(t, []string{"s1", "s2"}, r.FromEntity)
				assert.NotContains(t, []string{"s1", "s2"}, r.ToEntity)
				k := edge{r.FromEntity, r.ToEntity, r.Type}
				assert.False(t, seen[k], "duplicate edge %v", k)
				seen[k] = true
			}
			assert.Equal(t, map[edge]bool{
				{"t", "x", "works_at"}: true,
				{"y", "t", "located"}:  true,
			}, seen)

			// oldest edge of the duplicate group survives
			for _, r := range rels {
				if r.Type == "works_at" {
					assert.Equal(t, "r1", r.ID)
				}
			}

			files, err := s.ListFiles(ctx, "t")
			require.NoError(t, err)
			assert.Len(t, files, 2)
		})
	}
}

func TestCoordinator_DedupeKeepsOldestEdge(t *testing.T) {
	for _, store := range stores {
		t.Run(store.name, func(t *testing.T) {
			s := store.open(t)
			ctx := context.Background()
			person(t, s, "t", "Ann", "")
			person(t, s, "s1", "Ann", "")
			testutil.Entity(t, s, "x", "folder-1", "organization", "Acme", nil)

			// the older edge sorts last by id
			testutil.Relationship(t, s, "zzz-old", "t", "x", "works_at")
			testutil.Relationship(t, s, "aaa-new", "s1", "x", "works_at")

			c := merging.NewCoordinator(s, testutil.Logger())
			result, err := c.Merge(ctx, "t", []string{"s1"}, models.MergeOptions{})
			require.NoError(t, err)
			assert.Equal(t, int64(1), result.Stats.DuplicatesRemoved)

			rels, err := s.ListRelationships(ctx, "t")
			require.NoError(t, err)
			require.Len(t, rels, 1)
			assert.Equal(t, "zzz-old", rels[0].ID)
		})
	}
}

func TestCoordinator_MergedFromAccumulates(t *testing.T) {
	for _, store := range stores {
		t.Run(store.name, func(t *testing.T) {
			s := store.open(t)
			ctx := context.Background()
			person(t, s, "t", "Ann", "")
			person(t, s, "s1", "Ann", "")
			person(t, s, "s2", "Ann", "")

			c := merging.NewCoordinator(s, testutil.Logger())
			_, err := c.Merge(ctx, "t", []string{"s1"}, models.MergeOptions{})
			require.NoError(t, err)
			result, err := c.Merge(ctx, "t", []string{"s2"}, models.MergeOptions{})
			require.NoError(t, err)

			assert.Equal(t, []string{"s1", "s2"}, result.Entity.MergedFrom())
		})
	}
}

func TestCoordinator_MergedFromSurvivesEveryStrategy(t *testing.T) {
	strategies := []models.Strategy{
		models.StrategyTargetPriority,
		models.StrategySourcePriority,
		models.StrategyMergeAll,
		models.StrategyDeepMerge,
	}

	for _, store := range stores {
		for _, strategy := range strategies {
			t.Run(store.name+"/"+string(strategy), func(t *testing.T) {
				s := store.open(t)
				ctx := context.Background()
				for _, id := range []string{"t", "s1", "s2", "s3"} {
					person(t, s, id, "Ann", "")
				}

				c := merging.NewCoordinator(s, testutil.Logger())
				_, err := c.Merge(ctx, "t", []string{"s1"}, models.MergeOptions{})
				require.NoError(t, err)
				_, err = c.Merge(ctx, "s3", []string{"s2"}, models.MergeOptions{})
				require.NoError(t, err)

				result, err := c.Merge(ctx, "t", []string{"s3"}, models.MergeOptions{Strategy: strategy})
				require.NoError(t, err)
				assert.Equal(t, []string{"s1", "s2", "s3"}, result.Entity.MergedFrom())

				stored, err := s.GetEntity(ctx, "t")
				require.NoError(t, err)
				require.NotNil(t, stored)
				assert.Equal(t, []string{"s1", "s2", "s3"}, stored.MergedFrom())
			})
		}
	}
}

func TestCoordinator_FailureRollsBackEverything(t *testing.T) {
	seed := func(t *testing.T, s testStore) {
		person(t, s, "t", "Target", "t@example.com")
		person(t, s, "s1", "First Source", "s1@example.com")
		person(t, s, "s2", "Second Source", "s2@example.com")
		person(t, s, "s3", "Third Source", "s3@example.com")
		testutil.Entity(t, s, "x", "folder-1", "organization", "Acme", nil)
		testutil.Relationship(t, s, "r1", "s1", "x", "works_at")
		testutil.Relationship(t, s, "r2", "s2", "x", "works_at")
		testutil.File(t, s, "f1", "s1", "id.png")
	}

	verify := func(t *testing.T, s testStore, err error, injected error) {
		ctx := context.Background()
		require.Error(t, err)
		assert.ErrorIs(t, err, injected)

		target, getErr := s.GetEntity(ctx, "t")
		require.NoError(t, getErr)
		require.NotNil(t, target)
		assert.Equal(t, "Target", target.Name)
		assert.Empty(t, target.MergedFrom())

		for _, id := range []string{"s1", "s2", "s3"} {
			e, getErr := s.GetEntity(ctx, id)
			require.NoError(t, getErr)
			assert.NotNil(t, e, "%s must survive the rollback", id)
		}

		rels, listErr := s.ListRelationships(ctx, "s1")
		require.NoError(t, listErr)
		require.Len(t, rels, 1)
		assert.Equal(t, "s1", rels[0].FromEntity)

		files, listErr := s.ListFiles(ctx, "s1")
		require.NoError(t, listErr)
		assert.Len(t, files, 1)
	}

	for _, store := range stores {
		t.Run(store.name, func(t *testing.T) {
			base := store.open(t)
			seed(t, base)
			injected := errors.New("disk on fire")
			s := &failingStore{testStore: base, failOn: "s2", err: injected}

			c := merging.NewCoordinator(s, testutil.Logger())
			result, err := c.Merge(context.Background(), "t", []string{"s1", "s2", "s3"}, models.MergeOptions{})
			assert.Nil(t, result)
			verify(t, base, err, injected)
		})
	}

	t.Run("memstore injected failure", func(t *testing.T) {
		s := memstore.New()
		seed(t, s)
		injected := errors.New("repoint failed")
		s.InjectFailure(memstore.OpRepointFiles, "s2", injected)

		c := merging.NewCoordinator(s, testutil.Logger())
		_, err := c.Merge(context.Background(), "t", []string{"s1", "s2", "s3"}, models.MergeOptions{})
		verify(t, s, err, injected)
	})
}

func TestCoordinator_MissingEntities(t *testing.T) {
	for _, store := range stores {
		t.Run(store.name, func(t *testing.T) {
			s := store.open(t)
			ctx := context.Background()
			person(t, s, "t", "Target", "")
			person(t, s, "s1", "Source", "")
			c := merging.NewCoordinator(s, testutil.Logger())

			_, err := c.Merge(ctx, "nope", []string{"s1"}, models.MergeOptions{})
			assert.True(t, ferrors.IsNotFound(err))

			_, err = c.Merge(ctx, "t", []string{"s1", "ghost"}, models.MergeOptions{})
			assert.True(t, ferrors.IsNotFound(err))
			src, getErr := s.GetEntity(ctx, "s1")
			require.NoError(t, getErr)
			assert.NotNil(t, src, "s1 must survive when a later source is missing")

			result, err := c.Merge(ctx, "t", []string{"s1", "ghost"}, models.MergeOptions{SkipMissingSources: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"s1"}, result.MergedIDs)
			assert.Equal(t, []string{"ghost"}, result.SkippedIDs)
			assertGone(t, s, "s1")
		})
	}
}

func TestCoordinator_TypeMismatch(t *testing.T) {
	for _, store := range stores {
		t.Run(store.name, func(t *testing.T) {
			s := store.open(t)
			ctx := context.Background()
			person(t, s, "t", "Target", "")
			person(t, s, "s1", "Source", "")
			testutil.Entity(t, s, "p", "folder-1", "place", "Somewhere", nil)

			c := merging.NewCoordinator(s, testutil.Logger())
			_, err := c.Merge(ctx, "t", []string{"s1", "p"}, models.MergeOptions{})
			require.Error(t, err)
			assert.True(t, ferrors.IsIncompatible(err))
			assert.True(t, ferrors.IsValidation(err))
			assert.Equal(t, 409, ferrors.StatusCode(err))

			src, getErr := s.GetEntity(ctx, "s1")
			require.NoError(t, getErr)
			assert.NotNil(t, src)
		})
	}
}

func TestCoordinator_WithoutTransfer(t *testing.T) {
	for _, store := range stores {
		t.Run(store.name, func(t *testing.T) {
			s := store.open(t)
			ctx := context.Background()
			person(t, s, "t", "Target", "")
			person(t, s, "s1", "Source", "")
			testutil.Entity(t, s, "x", "folder-1", "organization", "Acme", nil)
			testutil.Relationship(t, s, "r1", "s1", "x", "works_at")
			testutil.File(t, s, "f1", "s1", "cv.pdf")

			c := merging.NewCoordinator(s, testutil.Logger())
			result, err := c.Merge(ctx, "t", []string{"s1"}, models.MergeOptions{
				TransferRelationships: models.BoolPtr(false),
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), result.Stats.RelationshipsDeleted)
			assert.Equal(t, int64(1), result.Stats.FilesDeleted)

			assertGone(t, s, "s1")
			rels, err := s.ListRelationships(ctx, "x")
			require.NoError(t, err)
			assert.Empty(t, rels)
			files, err := s.ListFiles(ctx, "t")
			require.NoError(t, err)
			assert.Empty(t, files)
		})
	}
}

func TestCoordinator_KeepSource(t *testing.T) {
	for _, store := range stores {
		t.Run(store.name, func(t *testing.T) {
			s := store.open(t)
			ctx := context.Background()
			person(t, s, "t", "Target", "")
			person(t, s, "s1", "Source", "")
			testutil.Entity(t, s, "x", "folder-1", "organization", "Acme", nil)
			testutil.Relationship(t, s, "r1", "s1", "x", "works_at")

			c := merging.NewCoordinator(s, testutil.Logger())
			result, err := c.Merge(ctx, "t", []string{"s1"}, models.MergeOptions{
				DeleteSource: models.BoolPtr(false),
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"s1"}, result.Entity.MergedFrom())

			src, err := s.GetEntity(ctx, "s1")
			require.NoError(t, err)
			assert.NotNil(t, src)

			rels, err := s.ListRelationships(ctx, "t")
			require.NoError(t, err)
			require.Len(t, rels, 1)
			assert.Equal(t, "t", rels[0].FromEntity)
		})
	}
}

func TestCoordinator_DeepMergePreferSource(t *testing.T) {
	s := memstore.New()
	testutil.Entity(t, s, "t", "folder-1", "person", "Target", models.Attributes{
		"social": models.Object(map[string]models.Value{"github": models.String("old")}),
	})
	testutil.Entity(t, s, "s1", "folder-1", "person", "Source", models.Attributes{
		"social": models.Object(map[string]models.Value{"github": models.String("new"), "twitter": models.String("tw")}),
	})

	c := merging.NewCoordinator(s, testutil.Logger())
	result, err := c.Merge(context.Background(), "t", []string{"s1"}, models.MergeOptions{
		Strategy: models.StrategyDeepMerge,
		Prefer:   models.PreferSource,
	})
	require.NoError(t, err)

	social, ok := result.Entity.Attributes["social"].AsObject()
	require.True(t, ok)
	assert.True(t, models.String("new").Equal(social["github"]))
	assert.True(t, models.String("tw").Equal(social["twitter"]))
}

func TestCoordinator_CanceledContext(t *testing.T) {
	s := memstore.New()
	person(t, s, "t", "Target", "")
	person(t, s, "s1", "Source", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := merging.NewCoordinator(s, testutil.Logger())
	_, err := c.Merge(ctx, "t", []string{"s1"}, models.MergeOptions{})
	assert.ErrorIs(t, err, context.Canceled)

	src, getErr := s.GetEntity(context.Background(), "s1")
	require.NoError(t, getErr)
	assert.NotNil(t, src)
}
