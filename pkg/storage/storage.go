// Package storage declares the persistence collaborator the merge engine runs against
package storage

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Reader reads entities and their edges. GetEntity returns nil, nil for a missing id.
type Reader interface {
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	ListEntities(ctx context.Context, folderID string, filter models.EntityFilter) ([]models.Entity, error)
	ListRelationships(ctx context.Context, entityID string) ([]models.Relationship, error)
}

// Writer holds the mutations the merge engine performs.
type Writer interface {
	UpdateEntity(ctx context.Context, id string, update models.EntityUpdate) (*models.Entity, error)
	DeleteEntity(ctx context.Context, id string) (bool, error)

	// RepointRelationships moves both ends of every edge from sourceID onto targetID
	RepointRelationships(ctx context.Context, sourceID, targetID string) (int64, error)
	// DeleteSelfLoops removes edges whose ends are both entityID
	DeleteSelfLoops(ctx context.Context, entityID string) (int64, error)
	// DedupeRelationships keeps the oldest edge, by (created_at, id), of every (from, to, type)
	// group touching entityID
	DedupeRelationships(ctx context.Context, entityID string) (int64, error)
	DeleteRelationships(ctx context.Context, entityID string) (int64, error)

	RepointFiles(ctx context.Context, sourceID, targetID string) (int64, error)
	DeleteFiles(ctx context.Context, entityID string) (int64, error)
}

// Tx is an explicit transaction scope. Commit and Rollback are the only ways it ends;
// both are safe to call more than once and Rollback after Commit does nothing.
type Tx interface {
	Reader
	Writer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the storage collaborator: plain reads plus transaction scopes for writes.
type Store interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
}
