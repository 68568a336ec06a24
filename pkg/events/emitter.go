// Package events publishes entity lifecycle events for committed merges
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	EventEntityMerged  = "entity.merged"
	EventEntityDeleted = "entity.deleted"
)

// Publisher sends a batch of entity events
type Publisher interface {
	PublishEntityEvents(ctx context.Context, events []*kafka.EntityEvent) error
}

// Emitter turns merge results into entity events
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
	now       func() time.Time
}

func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (e *Emitter) Name() string {
	return "events"
}

// AfterMerge publishes entity.merged for the target and entity.deleted for each
// source that was removed by the merge.
func (e *Emitter) AfterMerge(ctx context.Context, result *models.MergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.AfterMerge")
	defer span.End()

	events, err := e.Build(result)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	if err := e.publisher.PublishEntityEvents(ctx, events); err != nil {
		return err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"target_id":   result.Entity.ID,
		"event_count": len(events),
	}).Debug("Published merge events")
	return nil
}

// Build returns the events for result without publishing them.
func (e *Emitter) Build(result *models.MergeResult) ([]*kafka.EntityEvent, error) {
	if result == nil || result.Entity == nil || len(result.MergedIDs) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(result.Entity)
	if err != nil {
		return nil, err
	}

	ts := e.now()
	target := result.Entity
	events := []*kafka.EntityEvent{{
		EventType:      EventEntityMerged,
		FolderID:       target.FolderID,
		EntityID:       target.ID,
		EntityType:     target.Type,
		Data:           data,
		SourceEntities: result.MergedIDs,
		Timestamp:      ts,
	}}

	if !result.Options.ShouldDeleteSource() {
		return events, nil
	}

	deleted := ectolinq.Map(result.Sources, func(source models.Entity) *kafka.EntityEvent {
		return &kafka.EntityEvent{
			EventType:  EventEntityDeleted,
			FolderID:   source.FolderID,
			EntityID:   source.ID,
			EntityType: source.Type,
			MergedInto: target.ID,
			Timestamp:  ts,
		}
	})
	return append(events, deleted...), nil
}
