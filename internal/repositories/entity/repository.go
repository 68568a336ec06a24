package entity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "entities"

var columns = []string{"id", "folder_id", "type", "name", "position_x", "position_y", "attributes", "created_at", "updated_at"}

type row struct {
	ID         string                            `db:"id"`
	FolderID   string                            `db:"folder_id"`
	Type       string                            `db:"type"`
	Name       string                            `db:"name"`
	PositionX  float64                           `db:"position_x"`
	PositionY  float64                           `db:"position_y"`
	Attributes database.JSONB[models.Attributes] `db:"attributes"`
	CreatedAt  time.Time                         `db:"created_at"`
	UpdatedAt  time.Time                         `db:"updated_at"`
}

func (r row) toModel() models.Entity {
	attrs := r.Attributes.GetValue()
	if attrs == nil {
		attrs = models.Attributes{}
	}
	return models.Entity{
		ID:         r.ID,
		FolderID:   r.FolderID,
		Type:       r.Type,
		Name:       r.Name,
		Position:   models.Position{X: r.PositionX, Y: r.PositionY},
		Attributes: attrs,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

// Repository handles entity persistence over one executor, a pool or a transaction
type Repository struct {
	db     database.Executor
	sb     database.Builders
	logger ectologger.Logger
}

// NewRepository creates a new entity repository
func NewRepository(db database.Executor, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		sb:     database.NewBuilders(db),
		logger: logger,
	}
}

// Create inserts an entity, filling its id and timestamps when unset
func (r *Repository) Create(ctx context.Context, entity *models.Entity) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Create")
	defer span.End()

	if entity.Type == "" || entity.Name == "" {
		return nil, ferrors.Validation("entity type and name are required")
	}

	out := entity.Clone()
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = out.CreatedAt
	}
	if out.Attributes == nil {
		out.Attributes = models.Attributes{}
	}

	ib := r.sb.Insert(table)
	ib.Cols(columns...)
	ib.Values(out.ID, out.FolderID, out.Type, out.Name, out.Position.X, out.Position.Y, database.NewJSONB(out.Attributes), out.CreatedAt, out.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create entity")
		return nil, ferrors.Storage("create entity", err)
	}

	return out, nil
}

// Get returns nil, nil when the entity does not exist
func (r *Repository) Get(ctx context.Context, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Get")
	defer span.End()

	sb := r.sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var res row
	if err := r.db.GetContext(ctx, &res, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get entity")
		return nil, ferrors.Storage("get entity", err)
	}

	entity := res.toModel()
	return &entity, nil
}

// List returns the entities of a folder ordered by creation time then id
func (r *Repository) List(ctx context.Context, folderID string, filter models.EntityFilter) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.List")
	defer span.End()

	sb := r.sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("folder_id", folderID))
	if filter.Type != "" {
		sb.Where(sb.Equal("type", filter.Type))
	}
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list entities")
		return nil, ferrors.Storage("list entities", err)
	}

	entities := make([]models.Entity, 0, len(rows))
	for _, res := range rows {
		entities = append(entities, res.toModel())
	}
	return entities, nil
}

// Update changes the name and/or attributes of an entity and bumps updated_at
func (r *Repository) Update(ctx context.Context, id string, update models.EntityUpdate) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Update")
	defer span.End()

	ub := r.sb.Update(table)
	assignments := []string{ub.Assign("updated_at", time.Now().UTC())}
	if update.Name != nil {
		assignments = append(assignments, ub.Assign("name", *update.Name))
	}
	if update.Attributes != nil {
		assignments = append(assignments, ub.Assign("attributes", database.NewJSONB(update.Attributes)))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update entity")
		return nil, ferrors.Storage("update entity", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, ferrors.NotFound("entity", id)
	}

	return r.Get(ctx, id)
}

// Delete removes an entity. The bool reports whether a row existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Delete")
	defer span.End()

	db := r.sb.Delete(table)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete entity")
		return false, ferrors.Storage("delete entity", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
