// Package memstore is an in-memory storage collaborator with snapshot transactions
// and failure injection, used by tests and local dry runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/storage"
)

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*Tx)(nil)
)

// Op names a storage call that can be made to fail.
type Op string

const (
	OpGetEntity            Op = "get_entity"
	OpUpdateEntity         Op = "update_entity"
	OpDeleteEntity         Op = "delete_entity"
	OpRepointRelationships Op = "repoint_relationships"
	OpDeleteSelfLoops      Op = "delete_self_loops"
	OpDedupeRelationships  Op = "dedupe_relationships"
	OpDeleteRelationships  Op = "delete_relationships"
	OpRepointFiles         Op = "repoint_files"
	OpDeleteFiles          Op = "delete_files"
	OpCommit               Op = "commit"
)

type failureKey struct {
	op Op
	id string
}

type state struct {
	entities      map[string]models.Entity
	relationships map[string]models.Relationship
	files         map[string]models.File
}

func newState() *state {
	return &state{
		entities:      map[string]models.Entity{},
		relationships: map[string]models.Relationship{},
		files:         map[string]models.File{},
	}
}

func (s *state) clone() *state {
	out := newState()
	for id, e := range s.entities {
		out.entities[id] = *e.Clone()
	}
	for id, r := range s.relationships {
		r.Attributes = r.Attributes.Clone()
		out.relationships[id] = r
	}
	for id, f := range s.files {
		out.files[id] = f
	}
	return out
}

// Store keeps committed state behind a lock. Transactions work on a private copy that
// replaces the committed state on Commit. Only one transaction is open at a time.
type Store struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	state    *state
	failures map[failureKey]error
	now      func() time.Time
}

func New() *Store {
	return &Store{
		state:    newState(),
		failures: map[failureKey]error{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// InjectFailure makes op fail with err when called for entityID. An empty entityID
// matches every call of op. For repoint ops entityID is the source.
func (s *Store) InjectFailure(op Op, entityID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failureKey{op: op, id: entityID}] = err
}

// ClearFailures removes every injected failure
func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[failureKey]error{}
}

func (s *Store) failure(op Op, entityID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.failures[failureKey{op: op, id: entityID}]; ok {
		return err
	}
	return s.failures[failureKey{op: op}]
}

func (s *Store) CreateEntity(_ context.Context, e *models.Entity) (*models.Entity, error) {
	if e.Type == "" || e.Name == "" {
		return nil, ferrors.Validation("entity type and name are required")
	}

	out := e.Clone()
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = s.now()
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = out.CreatedAt
	}
	if out.Attributes == nil {
		out.Attributes = models.Attributes{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.entities[out.ID] = *out.Clone()
	return out, nil
}

func (s *Store) CreateRelationship(_ context.Context, rel *models.Relationship) (*models.Relationship, error) {
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
	if out.CreatedAt.IsZero() {
		out.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range []string{out.FromEntity, out.ToEntity} {
		if _, ok := s.state.entities[id]; !ok {
			return nil, ferrors.NotFound("entity", id)
		}
	}
	s.state.relationships[out.ID] = out
	return &out, nil
}

func (s *Store) CreateFile(_ context.Context, f *models.File) (*models.File, error) {
	out := *f
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.entities[out.EntityID]; !ok {
		return nil, ferrors.NotFound("entity", out.EntityID)
	}
	s.state.files[out.ID] = out
	return &out, nil
}

func (s *Store) GetEntity(_ context.Context, id string) (*models.Entity, error) {
	if err := s.failure(OpGetEntity, id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntity(s.state, id), nil
}

func (s *Store) ListEntities(_ context.Context, folderID string, filter models.EntityFilter) ([]models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEntities(s.state, folderID, filter), nil
}

func (s *Store) ListRelationships(_ context.Context, entityID string) ([]models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRelationships(s.state, entityID), nil
}

func (s *Store) ListFiles(_ context.Context, entityID string) ([]models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listFiles(s.state, entityID), nil
}

// Begin blocks until no other transaction is open, then snapshots committed state
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	s.txMu.Lock()
	if err := ctx.Err(); err != nil {
		s.txMu.Unlock()
		return nil, err
	}

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	return &Tx{store: s, work: work}, nil
}

func getEntity(st *state, id string) *models.Entity {
	e, ok := st.entities[id]
	if !ok {
		return nil
	}
	return e.Clone()
}

func listEntities(st *state, folderID string, filter models.EntityFilter) []models.Entity {
	out := []models.Entity{}
	for _, e := range st.entities {
		if e.FolderID != folderID {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		out = append(out, *e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func listRelationships(st *state, entityID string) []models.Relationship {
	out := []models.Relationship{}
	for _, r := range st.relationships {
		if r.Touches(entityID) {
			r.Attributes = r.Attributes.Clone()
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func listFiles(st *state, entityID string) []models.File {
	out := []models.File{}
	for _, f := range st.files {
		if f.EntityID == entityID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
