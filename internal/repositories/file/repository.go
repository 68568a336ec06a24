package file

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

const table = "files"

var columns = []string{"id", "entity_id", "filename", "path", "size", "hash", "created_at"}

type row struct {
	ID        string    `db:"id"`
	EntityID  string    `db:"entity_id"`
	Filename  string    `db:"filename"`
	Path      string    `db:"path"`
	Size      int64     `db:"size"`
	Hash      string    `db:"hash"`
	CreatedAt time.Time `db:"created_at"`
}

// Repository handles file attachment metadata. File bytes live elsewhere.
type Repository struct {
	db     database.Executor
	sb     database.Builders
	logger ectologger.Logger
}

// NewRepository creates a new file repository
func NewRepository(db database.Executor, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		sb:     database.NewBuilders(db),
		logger: logger,
	}
}

func (r *Repository) Create(ctx context.Context, f *models.File) (*models.File, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.Create")
	defer span.End()

	out := *f
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	ib := r.sb.Insert(table)
	ib.Cols(columns...)
	ib.Values(out.ID, out.EntityID, out.Filename, out.Path, out.Size, out.Hash, out.CreatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create file")
		return nil, ferrors.Storage("create file", err)
	}
	return &out, nil
}

func (r *Repository) ListForEntity(ctx context.Context, entityID string) ([]models.File, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.ListForEntity")
	defer span.End()

	sb := r.sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("entity_id", entityID))
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list files")
		return nil, ferrors.Storage("list files", err)
	}

	files := make([]models.File, 0, len(rows))
	for _, res := range rows {
		files = append(files, models.File{
			ID:        res.ID,
			EntityID:  res.EntityID,
			Filename:  res.Filename,
			Path:      res.Path,
			Size:      res.Size,
			Hash:      res.Hash,
			CreatedAt: res.CreatedAt.UTC(),
		})
	}
	return files, nil
}

// Repoint hands every file owned by sourceID to targetID
func (r *Repository) Repoint(ctx context.Context, sourceID, targetID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.Repoint")
	defer span.End()

	ub := r.sb.Update(table)
	ub.Set(ub.Assign("entity_id", targetID))
	ub.Where(ub.Equal("entity_id", sourceID))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to repoint files")
		return 0, ferrors.Storage("repoint files", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (r *Repository) DeleteForEntity(ctx context.Context, entityID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "file.Repository.DeleteForEntity")
	defer span.End()

	db := r.sb.Delete(table)
	db.Where(db.Equal("entity_id", entityID))

	query, args := db.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete files")
		return 0, ferrors.Storage("delete files", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
