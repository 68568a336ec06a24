package relationship

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "relationships"

var columns = []string{"id", "from_entity", "to_entity", "type", "strength", "description", "attributes", "created_at"}

// dedupeQuery deletes every edge touching an entity that has an older twin with the same
// (from_entity, to_entity, type). Age is (created_at, id).
const dedupeQuery = `DELETE FROM relationships
WHERE (from_entity = ? OR to_entity = ?)
  AND EXISTS (
    SELECT 1 FROM relationships r2
    WHERE r2.from_entity = relationships.from_entity
      AND r2.to_entity = relationships.to_entity
      AND r2.type = relationships.type
      AND (r2.created_at < relationships.created_at
        OR (r2.created_at = relationships.created_at AND r2.id < relationships.id))
  )`

type row struct {
	ID          string                            `db:"id"`
	FromEntity  string                            `db:"from_entity"`
	ToEntity    string                            `db:"to_entity"`
	Type        string                            `db:"type"`
	Strength    string                            `db:"strength"`
	Description string                            `db:"description"`
	Attributes  database.JSONB[models.Attributes] `db:"attributes"`
	CreatedAt   time.Time                         `db:"created_at"`
}

func (r row) toModel() models.Relationship {
	return models.Relationship{
		ID:          r.ID,
		FromEntity:  r.FromEntity,
		ToEntity:    r.ToEntity,
		Type:        r.Type,
		Strength:    models.Strength(r.Strength),
		Description: r.Description,
		Attributes:  r.Attributes.GetValue(),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// Repository handles relationship persistence
type Repository struct {
	db     database.Executor
	sb     database.Builders
	logger ectologger.Logger
}

// NewRepository creates a new relationship repository
func NewRepository(db database.Executor, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		sb:     database.NewBuilders(db),
		logger: logger,
	}
}

// Create inserts a relationship. Self loops are rejected.
func (r *Repository) Create(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Create")
	defer span.End()

	if rel.FromEntity == rel.ToEntity {
		return nil, ferrors.Validation("a relationship cannot connect an entity to itself").WithEntity(rel.FromEntity)
	}

	out := *rel
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.Strength == "" {
		out.Strength = models.StrengthMedium
	}
	if !out.Strength.IsValid() {
		return nil, ferrors.Validationf("invalid relationship strength %q", out.Strength)
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	if out.Attributes == nil {
		out.Attributes = models.Attributes{}
	}

	ib := r.sb.Insert(table)
	ib.Cols(columns...)
	ib.Values(out.ID, out.FromEntity, out.ToEntity, out.Type, string(out.Strength), out.Description, database.NewJSONB(out.Attributes), out.CreatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create relationship")
		return nil, ferrors.Storage("create relationship", err)
	}
	return &out, nil
}

// ListForEntity returns every edge with entityID on either end
func (r *Repository) ListForEntity(ctx context.Context, entityID string) ([]models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListForEntity")
	defer span.End()

	sb := r.sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Or(sb.Equal("from_entity", entityID), sb.Equal("to_entity", entityID)))
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list relationships")
		return nil, ferrors.Storage("list relationships", err)
	}

	rels := make([]models.Relationship, 0, len(rows))
	for _, res := range rows {
		rels = append(rels, res.toModel())
	}
	return rels, nil
}

// Repoint moves both ends of every edge from sourceID to targetID
func (r *Repository) Repoint(ctx context.Context, sourceID, targetID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Repoint")
	defer span.End()

	var total int64
	for _, column := range []string{"from_entity", "to_entity"} {
		ub := r.sb.Update(table)
		ub.Set(ub.Assign(column, targetID))
		ub.Where(ub.Equal(column, sourceID))

		n, err := r.exec(ctx, "repoint relationships", ub.Build)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DeleteSelfLoops removes edges from entityID to itself
func (r *Repository) DeleteSelfLoops(ctx context.Context, entityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.DeleteSelfLoops")
	defer span.End()

	db := r.sb.Delete(table)
	db.Where(db.Equal("from_entity", entityID), db.Equal("to_entity", entityID))
	return r.exec(ctx, "delete self loops", db.Build)
}

// Dedupe collapses duplicate (from_entity, to_entity, type) edges touching entityID to
// the oldest one. Descriptions and attributes of the dropped rows are discarded.
func (r *Repository) Dedupe(ctx context.Context, entityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Dedupe")
	defer span.End()

	return r.exec(ctx, "dedupe relationships", func() (string, []any) {
		return r.db.Rebind(dedupeQuery), []any{entityID, entityID}
	})
}

// DeleteForEntity removes every edge with entityID on either end
func (r *Repository) DeleteForEntity(ctx context.Context, entityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.DeleteForEntity")
	defer span.End()

	db := r.sb.Delete(table)
	db.Where(db.Or(db.Equal("from_entity", entityID), db.Equal("to_entity", entityID)))
	return r.exec(ctx, "delete relationships", db.Build)
}

func (r *Repository) exec(ctx context.Context, op string, build func() (string, []any)) (int64, error) {
	query, args := build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to %s", op)
		return 0, ferrors.Storage(op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, ferrors.Storage(op, err)
	}
	return rows, nil
}
