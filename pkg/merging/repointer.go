package merging

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/storage"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repointer moves every reference to a source entity onto the target.
type Repointer struct {
	logger ectologger.Logger
}

// NewRepointer creates a new Repointer
func NewRepointer(logger ectologger.Logger) *Repointer {
	return &Repointer{logger: logger}
}

// Repoint rewrites edges and file ownership from sourceID to targetID within w.
//
// Edges that end up joining the target to itself are removed, then every
// (from, to, type) group touching the target is collapsed to its oldest row.
// The description and attributes of collapsed rows are dropped, not merged.
func (r *Repointer) Repoint(ctx context.Context, w storage.Writer, sourceID, targetID string) (models.RepointStats, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Repointer.Repoint")
	defer span.End()

	var stats models.RepointStats
	var err error

	if stats.RelationshipsRepointed, err = w.RepointRelationships(ctx, sourceID, targetID); err != nil {
		return stats, err
	}
	if stats.SelfLoopsRemoved, err = w.DeleteSelfLoops(ctx, targetID); err != nil {
		return stats, err
	}
	if stats.DuplicatesRemoved, err = w.DedupeRelationships(ctx, targetID); err != nil {
		return stats, err
	}
	if stats.FilesMoved, err = w.RepointFiles(ctx, sourceID, targetID); err != nil {
		return stats, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"source_id":               sourceID,
		"target_id":               targetID,
		"relationships_repointed": stats.RelationshipsRepointed,
		"self_loops_removed":      stats.SelfLoopsRemoved,
		"duplicates_removed":      stats.DuplicatesRemoved,
		"files_moved":             stats.FilesMoved,
	}).Debug("Repointed references")

	return stats, nil
}

// Detach removes every edge and file still owned by entityID.
func (r *Repointer) Detach(ctx context.Context, w storage.Writer, entityID string) (models.RepointStats, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Repointer.Detach")
	defer span.End()

	var stats models.RepointStats
	var err error

	if stats.RelationshipsDeleted, err = w.DeleteRelationships(ctx, entityID); err != nil {
		return stats, err
	}
	if stats.FilesDeleted, err = w.DeleteFiles(ctx, entityID); err != nil {
		return stats, err
	}
	return stats, nil
}
