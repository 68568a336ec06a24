// Package sqlstore composes the SQL repositories into the merge engine's storage collaborator
package sqlstore

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/file"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/storage"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*Tx)(nil)
)

type repositories struct {
	entities      *entity.Repository
	relationships *relationship.Repository
	files         *file.Repository
}

func newRepositories(exec database.Executor, logger ectologger.Logger) repositories {
	return repositories{
		entities:      entity.NewRepository(exec, logger),
		relationships: relationship.NewRepository(exec, logger),
		files:         file.NewRepository(exec, logger),
	}
}

func (r repositories) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return r.entities.Get(ctx, id)
}

func (r repositories) ListEntities(ctx context.Context, folderID string, filter models.EntityFilter) ([]models.Entity, error) {
	return r.entities.List(ctx, folderID, filter)
}

func (r repositories) ListRelationships(ctx context.Context, entityID string) ([]models.Relationship, error) {
	return r.relationships.ListForEntity(ctx, entityID)
}

func (r repositories) ListFiles(ctx context.Context, entityID string) ([]models.File, error) {
	return r.files.ListForEntity(ctx, entityID)
}

func (r repositories) CreateEntity(ctx context.Context, e *models.Entity) (*models.Entity, error) {
	return r.entities.Create(ctx, e)
}

func (r repositories) CreateRelationship(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	return r.relationships.Create(ctx, rel)
}

func (r repositories) CreateFile(ctx context.Context, f *models.File) (*models.File, error) {
	return r.files.Create(ctx, f)
}

// Store runs reads on the pool and merges inside explicit transactions.
type Store struct {
	repositories
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Store {
	return &Store{
		repositories: newRepositories(db, logger),
		db:           db,
		logger:       logger,
	}
}

// Begin opens a transaction and binds a fresh set of repositories to it
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	ctx, span := tracing.StartSpan(ctx, "sqlstore.Store.Begin")
	defer span.End()

	tx, err := s.db.StartTx(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{
		repositories: newRepositories(tx, s.logger),
		tx:           tx,
	}, nil
}

// Tx is a storage.Tx over one database transaction.
type Tx struct {
	repositories
	tx *database.Transaction
}

func (t *Tx) UpdateEntity(ctx context.Context, id string, update models.EntityUpdate) (*models.Entity, error) {
	return t.entities.Update(ctx, id, update)
}

func (t *Tx) DeleteEntity(ctx context.Context, id string) (bool, error) {
	return t.entities.Delete(ctx, id)
}

func (t *Tx) RepointRelationships(ctx context.Context, sourceID, targetID string) (int64, error) {
	return t.relationships.Repoint(ctx, sourceID, targetID)
}

func (t *Tx) DeleteSelfLoops(ctx context.Context, entityID string) (int64, error) {
	return t.relationships.DeleteSelfLoops(ctx, entityID)
}

func (t *Tx) DedupeRelationships(ctx context.Context, entityID string) (int64, error) {
	return t.relationships.Dedupe(ctx, entityID)
}

func (t *Tx) DeleteRelationships(ctx context.Context, entityID string) (int64, error) {
	return t.relationships.DeleteForEntity(ctx, entityID)
}

func (t *Tx) RepointFiles(ctx context.Context, sourceID, targetID string) (int64, error) {
	return t.files.Repoint(ctx, sourceID, targetID)
}

func (t *Tx) DeleteFiles(ctx context.Context, entityID string) (int64, error) {
	return t.files.DeleteForEntity(ctx, entityID)
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
