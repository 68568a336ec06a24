// Package mergerecord keeps short-lived snapshots of merges for undo inspection
package mergerecord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultTTL = 7 * 24 * time.Hour

	keyPrefix = "fern:merge:"
)

// KV is the key/value surface the store needs. *redis.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Store saves merge records under fern:merge:<id> and tracks the latest
// record of each target under fern:merge:target:<target id>.
type Store struct {
	kv     KV
	ttl    time.Duration
	logger ectologger.Logger
	now    func() time.Time
}

func NewStore(kv KV, ttl time.Duration, logger ectologger.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func recordKey(id string) string {
	return keyPrefix + id
}

func targetKey(targetID string) string {
	return keyPrefix + "target:" + targetID
}

func (s *Store) Name() string {
	return "merge_record"
}

// AfterMerge saves a record for result.
func (s *Store) AfterMerge(ctx context.Context, result *models.MergeResult) error {
	if result == nil || result.Entity == nil || len(result.MergedIDs) == 0 {
		return nil
	}
	_, err := s.Save(ctx, result)
	return err
}

// Save snapshots the pre-merge target and sources of result.
func (s *Store) Save(ctx context.Context, result *models.MergeResult) (*models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "mergerecord.Store.Save")
	defer span.End()

	record := &models.MergeRecord{
		ID:       uuid.NewString(),
		TargetID: result.Entity.ID,
		Target:   result.Target,
		Sources:  result.Sources,
		Options:  result.Options,
		MergedAt: s.now(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merge record: %w", err)
	}

	if err := s.kv.Set(ctx, recordKey(record.ID), data, s.ttl); err != nil {
		return nil, ferrors.Storage("save merge record", err)
	}
	if err := s.kv.Set(ctx, targetKey(record.TargetID), record.ID, s.ttl); err != nil {
		return nil, ferrors.Storage("index merge record", err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"record_id": record.ID,
		"target_id": record.TargetID,
		"ttl":       s.ttl.String(),
	}).Debug("Saved merge record")

	return record, nil
}

// Get returns the record with id, or a NotFound error once it has expired.
func (s *Store) Get(ctx context.Context, id string) (*models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "mergerecord.Store.Get")
	defer span.End()

	data, err := s.kv.Get(ctx, recordKey(id))
	if errors.Is(err, redis.Nil) {
		return nil, ferrors.NotFound("merge record", id)
	}
	if err != nil {
		return nil, ferrors.Storage("get merge record", err)
	}

	var record models.MergeRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to decode merge record %s: %w", id, err)
	}
	return &record, nil
}

// Latest returns the most recent record of targetID.
func (s *Store) Latest(ctx context.Context, targetID string) (*models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "mergerecord.Store.Latest")
	defer span.End()

	id, err := s.kv.Get(ctx, targetKey(targetID))
	if errors.Is(err, redis.Nil) {
		return nil, ferrors.NotFound("merge record for entity", targetID)
	}
	if err != nil {
		return nil, ferrors.Storage("get latest merge record", err)
	}
	return s.Get(ctx, id)
}
