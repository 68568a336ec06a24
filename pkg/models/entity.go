package models

import "time"

// MergedFromKey is the attribute holding the ids of every entity absorbed into an entity.
const MergedFromKey = "merged_from"

// Position is where an entity is drawn on the folder canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Entity is a tracked subject (person, place, organization, ...) inside a folder.
type Entity struct {
	ID         string     `json:"id"`
	FolderID   string     `json:"folder_id"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Position   Position   `json:"position"`
	Attributes Attributes `json:"attributes"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.Attributes = e.Attributes.Clone()
	return &out
}

// MergedFrom returns the ids recorded under merged_from, in order.
func (e *Entity) MergedFrom() []string {
	v, ok := e.Attributes[MergedFromKey]
	if !ok {
		return nil
	}
	if s, ok := v.AsString(); ok {
		return []string{s}
	}
	items, _ := v.AsArray()
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.AsString(); ok {
			ids = append(ids, s)
		}
	}
	return ids
}

// EntityUpdate carries the fields the merge engine is allowed to change.
// Nil fields are left untouched.
type EntityUpdate struct {
	Name       *string
	Attributes Attributes
}

// EntityFilter narrows ListEntities.
type EntityFilter struct {
	Type string
}

// Strength is how strongly a relationship is asserted.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

func (s Strength) IsValid() bool {
	switch s {
	case StrengthWeak, StrengthMedium, StrengthStrong:
		return true
	}
	return false
}

// Relationship is a typed, directed edge between two entities.
type Relationship struct {
	ID          string     `json:"id"`
	FromEntity  string     `json:"from_entity"`
	ToEntity    string     `json:"to_entity"`
	Type        string     `json:"type"`
	Strength    Strength   `json:"strength"`
	Description string     `json:"description,omitempty"`
	Attributes  Attributes `json:"attributes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Touches reports whether the relationship has entityID on either end.
func (r Relationship) Touches(entityID string) bool {
	return r.FromEntity == entityID || r.ToEntity == entityID
}

// File is an attachment owned by exactly one entity.
type File struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entity_id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}
