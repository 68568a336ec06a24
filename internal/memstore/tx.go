package memstore

import (
	"context"
	"sort"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Tx mutates a private copy of the store. Nothing is visible outside until Commit.
type Tx struct {
	store  *Store
	work   *state
	closed bool
}

func (t *Tx) check(op Op, entityID string) error {
	if t.closed {
		return ferrors.Storage(string(op), errTxClosed)
	}
	return t.store.failure(op, entityID)
}

func (t *Tx) GetEntity(_ context.Context, id string) (*models.Entity, error) {
	if err := t.check(OpGetEntity, id); err != nil {
		return nil, err
	}
	return getEntity(t.work, id), nil
}

func (t *Tx) ListEntities(_ context.Context, folderID string, filter models.EntityFilter) ([]models.Entity, error) {
	return listEntities(t.work, folderID, filter), nil
}

func (t *Tx) ListRelationships(_ context.Context, entityID string) ([]models.Relationship, error) {
	return listRelationships(t.work, entityID), nil
}

func (t *Tx) UpdateEntity(_ context.Context, id string, update models.EntityUpdate) (*models.Entity, error) {
	if err := t.check(OpUpdateEntity, id); err != nil {
		return nil, err
	}
	e, ok := t.work.entities[id]
	if !ok {
		return nil, ferrors.NotFound("entity", id)
	}
	if update.Name != nil {
		e.Name = *update.Name
	}
	if update.Attributes != nil {
		e.Attributes = update.Attributes.Clone()
	}
	e.UpdatedAt = t.store.now()
	t.work.entities[id] = e
	return e.Clone(), nil
}

func (t *Tx) DeleteEntity(_ context.Context, id string) (bool, error) {
	if err := t.check(OpDeleteEntity, id); err != nil {
		return false, err
	}
	if _, ok := t.work.entities[id]; !ok {
		return false, nil
	}
	delete(t.work.entities, id)
	// mirror ON DELETE CASCADE
	for rid, r := range t.work.relationships {
		if r.Touches(id) {
			delete(t.work.relationships, rid)
		}
	}
	for fid, f := range t.work.files {
		if f.EntityID == id {
			delete(t.work.files, fid)
		}
	}
	return true, nil
}

func (t *Tx) RepointRelationships(_ context.Context, sourceID, targetID string) (int64, error) {
	if err := t.check(OpRepointRelationships, sourceID); err != nil {
		return 0, err
	}
	var n int64
	for id, r := range t.work.relationships {
		if r.FromEntity == sourceID {
			r.FromEntity = targetID
			n++
		}
		if r.ToEntity == sourceID {
			r.ToEntity = targetID
			n++
		}
		t.work.relationships[id] = r
	}
	return n, nil
}

func (t *Tx) DeleteSelfLoops(_ context.Context, entityID string) (int64, error) {
	if err := t.check(OpDeleteSelfLoops, entityID); err != nil {
		return 0, err
	}
	var n int64
	for id, r := range t.work.relationships {
		if r.FromEntity == entityID && r.ToEntity == entityID {
			delete(t.work.relationships, id)
			n++
		}
	}
	return n, nil
}

func (t *Tx) DedupeRelationships(_ context.Context, entityID string) (int64, error) {
	if err := t.check(OpDedupeRelationships, entityID); err != nil {
		return 0, err
	}

	type edgeKey struct{ from, to, typ string }
	groups := map[edgeKey][]models.Relationship{}
	for _, r := range t.work.relationships {
		if !r.Touches(entityID) {
			continue
		}
		k := edgeKey{r.FromEntity, r.ToEntity, r.Type}
		groups[k] = append(groups[k], r)
	}

	var n int64
	for _, rels := range groups {
		if len(rels) < 2 {
			continue
		}
		// the oldest edge survives, id breaks created_at ties
		sort.Slice(rels, func(i, j int) bool {
			if !rels[i].CreatedAt.Equal(rels[j].CreatedAt) {
				return rels[i].CreatedAt.Before(rels[j].CreatedAt)
			}
			return rels[i].ID < rels[j].ID
		})
		for _, r := range rels[1:] {
			delete(t.work.relationships, r.ID)
			n++
		}
	}
	return n, nil
}

func (t *Tx) DeleteRelationships(_ context.Context, entityID string) (int64, error) {
	if err := t.check(OpDeleteRelationships, entityID); err != nil {
		return 0, err
	}
	var n int64
	for id, r := range t.work.relationships {
		if r.Touches(entityID) {
			delete(t.work.relationships, id)
			n++
		}
	}
	return n, nil
}

func (t *Tx) RepointFiles(_ context.Context, sourceID, targetID string) (int64, error) {
	if err := t.check(OpRepointFiles, sourceID); err != nil {
		return 0, err
	}
	var n int64
	for id, f := range t.work.files {
		if f.EntityID == sourceID {
			f.EntityID = targetID
			t.work.files[id] = f
			n++
		}
	}
	return n, nil
}

func (t *Tx) DeleteFiles(_ context.Context, entityID string) (int64, error) {
	if err := t.check(OpDeleteFiles, entityID); err != nil {
		return 0, err
	}
	var n int64
	for id, f := range t.work.files {
		if f.EntityID == entityID {
			delete(t.work.files, id)
			n++
		}
	}
	return n, nil
}

func (t *Tx) Commit(_ context.Context) error {
	if t.closed {
		return nil
	}
	if err := t.store.failure(OpCommit, ""); err != nil {
		t.release()
		return err
	}

	t.store.mu.Lock()
	t.store.state = t.work
	t.store.mu.Unlock()
	t.release()
	return nil
}

func (t *Tx) Rollback(_ context.Context) error {
	if t.closed {
		return nil
	}
	t.release()
	return nil
}

func (t *Tx) release() {
	t.closed = true
	t.store.txMu.Unlock()
}
