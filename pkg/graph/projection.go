package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Runner executes statements in one write transaction
type Runner interface {
	RunWrite(ctx context.Context, statements []Statement) error
}

const (
	upsertTargetCypher = `
		MERGE (e:Entity {id: $id})
		SET e.folder_id = $folder_id, e.type = $type, e.name = $name,
		    e.merged_from = $merged_from, e.updated_at = $updated_at
	`
	moveOutgoingCypher = `
		MATCH (s:Entity {id: $source_id})-[r:RELATED]->(o:Entity)
		WHERE o.id <> $target_id AND o.id <> $source_id
		MATCH (t:Entity {id: $target_id})
		MERGE (t)-[:RELATED {type: r.type}]->(o)
	`
	moveIncomingCypher = `
		MATCH (o:Entity)-[r:RELATED]->(s:Entity {id: $source_id})
		WHERE o.id <> $target_id AND o.id <> $source_id
		MATCH (t:Entity {id: $target_id})
		MERGE (o)-[:RELATED {type: r.type}]->(t)
	`
	dropEdgesCypher = `
		MATCH (s:Entity {id: $source_id})-[r:RELATED]-()
		DELETE r
	`
	deleteSourceCypher = `
		MATCH (s:Entity {id: $source_id})
		DETACH DELETE s
	`
)

// Projection mirrors a committed merge onto the graph: source edges move to the
// target and projected source nodes are removed.
type Projection struct {
	runner Runner
	logger ectologger.Logger
}

func NewProjection(runner Runner, logger ectologger.Logger) *Projection {
	return &Projection{
		runner: runner,
		logger: logger,
	}
}

func (p *Projection) Name() string {
	return "graph"
}

func (p *Projection) AfterMerge(ctx context.Context, result *models.MergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projection.AfterMerge")
	defer span.End()

	statements := p.Statements(result)
	if len(statements) == 0 {
		return nil
	}

	if err := p.runner.RunWrite(ctx, statements); err != nil {
		return fmt.Errorf("failed to project merge into graph: %w", err)
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"target_id":       result.Entity.ID,
		"statement_count": len(statements),
	}).Debug("Projected merge into graph")
	return nil
}

// Statements returns the Cypher needed to mirror result.
func (p *Projection) Statements(result *models.MergeResult) []Statement {
	if result == nil || result.Entity == nil || len(result.MergedIDs) == 0 {
		return nil
	}

	target := result.Entity
	statements := []Statement{{
		Cypher: upsertTargetCypher,
		Params: map[string]any{
			"id":          target.ID,
			"folder_id":   target.FolderID,
			"type":        target.Type,
			"name":        target.Name,
			"merged_from": target.MergedFrom(),
			"updated_at":  target.UpdatedAt.UTC().Format(time.RFC3339),
		},
	}}

	transfer := result.Options.ShouldTransferRelationships()
	remove := result.Options.ShouldDeleteSource()

	for _, sourceID := range result.MergedIDs {
		params := map[string]any{
			"source_id": sourceID,
			"target_id": target.ID,
		}

		if transfer {
			statements = append(statements,
				Statement{Cypher: moveOutgoingCypher, Params: params},
				Statement{Cypher: moveIncomingCypher, Params: params},
			)
		}

		switch {
		case remove:
			statements = append(statements, Statement{Cypher: deleteSourceCypher, Params: params})
		case transfer:
			statements = append(statements, Statement{Cypher: dropEdgesCypher, Params: params})
		}
	}
	return statements
}
