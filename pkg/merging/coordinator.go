package merging

import (
	"context"

	"github.com/Gobusters/ectologger"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/storage"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Coordinator executes one merge request inside one transaction scope.
type Coordinator struct {
	store     storage.Store
	merger    *AttributeMerger
	repointer *Repointer
	logger    ectologger.Logger
}

// NewCoordinator creates a merge coordinator over store
func NewCoordinator(store storage.Store, logger ectologger.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		merger:    NewAttributeMerger(),
		repointer: NewRepointer(logger),
		logger:    logger,
	}
}

// Validate checks a merge request without touching storage.
func Validate(targetID string, sourceIDs []string, opts models.MergeOptions) error {
	if targetID == "" {
		return ferrors.Validation("target id is required")
	}
	if len(sourceIDs) == 0 {
		return ferrors.Validation("at least one source id is required")
	}

	seen := make(map[string]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		if id == "" {
			return ferrors.Validation("source ids must not be empty")
		}
		if id == targetID {
			return ferrors.Validationf("entity %s cannot be merged into itself", id).WithEntity(id)
		}
		if _, dup := seen[id]; dup {
			return ferrors.Validationf("source %s is listed more than once", id).WithEntity(id)
		}
		seen[id] = struct{}{}
	}

	if opts.Prefer != "" && !opts.Prefer.IsValid() {
		return ferrors.Validationf("invalid prefer option %q", opts.Prefer)
	}
	if opts.Strategy != "" && !opts.Strategy.IsValid() {
		return ferrors.Validationf("invalid merge strategy %q", opts.Strategy)
	}
	return nil
}

// Merge folds every source into the target, repoints their references and deletes them.
//
// Any failure rolls the whole transaction back: no source is left partially repointed
// or deleted and the target is untouched. Storage errors are returned unchanged.
func (c *Coordinator) Merge(ctx context.Context, targetID string, sourceIDs []string, opts models.MergeOptions) (result *models.MergeResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Coordinator.Merge")
	defer span.End()

	if err := Validate(targetID, sourceIDs, opts); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"target_id":    targetID,
		"source_count": len(sourceIDs),
		"strategy":     opts.Strategy,
	})

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.WithError(rbErr).Error("Failed to roll back merge")
		}
		log.WithError(err).Warn("Merge rolled back")
	}()

	target, err := tx.GetEntity(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ferrors.NotFound("entity", targetID)
	}

	result = &models.MergeResult{Options: opts, Target: *target.Clone()}
	name := target.Name
	attributes := target.Attributes.Clone()

	for _, sourceID := range sourceIDs {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		source, err := tx.GetEntity(ctx, sourceID)
		if err != nil {
			return nil, err
		}
		if source == nil {
			if opts.SkipMissingSources {
				log.WithField("source_id", sourceID).Warn("Skipping missing merge source")
				result.SkippedIDs = append(result.SkippedIDs, sourceID)
				continue
			}
			return nil, ferrors.NotFound("entity", sourceID)
		}

		if source.Type != target.Type {
			return nil, ferrors.Incompatiblef("cannot merge %s entity %s into %s entity %s", source.Type, source.ID, target.Type, target.ID).WithEntity(source.ID)
		}

		name = BuildMergedName(name, source.Name)
		attributes = c.merger.Absorb(attributes, source.Attributes, source.ID, opts.Strategy, opts.Prefer)

		if opts.ShouldTransferRelationships() {
			stats, err := c.repointer.Repoint(ctx, tx, source.ID, target.ID)
			if err != nil {
				return nil, err
			}
			result.Stats.Add(stats)
		}

		if opts.ShouldDeleteSource() {
			if !opts.ShouldTransferRelationships() {
				stats, err := c.repointer.Detach(ctx, tx, source.ID)
				if err != nil {
					return nil, err
				}
				result.Stats.Add(stats)
			}
			if _, err := tx.DeleteEntity(ctx, source.ID); err != nil {
				return nil, err
			}
		}

		log.WithField("source_id", source.ID).Debug("Merged source into target")
		result.MergedIDs = append(result.MergedIDs, source.ID)
		result.Sources = append(result.Sources, *source)
	}

	updated, err := tx.UpdateEntity(ctx, target.ID, models.EntityUpdate{
		Name:       &name,
		Attributes: attributes,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	result.Entity = updated
	log.WithFields(map[string]any{
		"merged_count":            len(result.MergedIDs),
		"skipped_count":           len(result.SkippedIDs),
		"relationships_repointed": result.Stats.RelationshipsRepointed,
		"files_moved":             result.Stats.FilesMoved,
	}).Info("Merged entities")

	return result, nil
}
