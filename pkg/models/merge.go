package models

import "time"

// Prefer decides which side wins scalar conflicts in a deep merge.
type Prefer string

const (
	PreferTarget Prefer = "target"
	PreferSource Prefer = "source"
)

func (p Prefer) IsValid() bool {
	return p == PreferTarget || p == PreferSource
}

// Strategy selects how source attributes are folded into the target.
type Strategy string

const (
	// StrategyTargetPriority keeps every target value and only adds missing keys from the source
	StrategyTargetPriority Strategy = "target_priority"
	// StrategySourcePriority lets source values overwrite the target
	StrategySourcePriority Strategy = "source_priority"
	// StrategyMergeAll unions arrays, keeps the longer string and otherwise keeps the target
	StrategyMergeAll Strategy = "merge_all"
	// StrategyDeepMerge recursively merges nested objects, honoring Prefer for scalars
	StrategyDeepMerge Strategy = "deep_merge"
)

func (s Strategy) IsValid() bool {
	switch s {
	case StrategyTargetPriority, StrategySourcePriority, StrategyMergeAll, StrategyDeepMerge:
		return true
	}
	return false
}

// MergeOptions tunes a merge request.
type MergeOptions struct {
	Prefer                Prefer   `json:"prefer,omitempty"`
	Strategy              Strategy `json:"strategy,omitempty"`
	TransferRelationships *bool    `json:"transfer_relationships,omitempty"`
	DeleteSource          *bool    `json:"delete_source,omitempty"`
	// SkipMissingSources skips sources that no longer exist instead of failing the merge
	SkipMissingSources bool `json:"skip_missing_sources,omitempty"`
}

// WithDefaults fills unset options: prefer target, merge_all, transfer and delete enabled.
func (o MergeOptions) WithDefaults() MergeOptions {
	if o.Prefer == "" {
		o.Prefer = PreferTarget
	}
	if o.Strategy == "" {
		o.Strategy = StrategyMergeAll
	}
	if o.TransferRelationships == nil {
		o.TransferRelationships = BoolPtr(true)
	}
	if o.DeleteSource == nil {
		o.DeleteSource = BoolPtr(true)
	}
	return o
}

func (o MergeOptions) ShouldTransferRelationships() bool {
	return o.TransferRelationships == nil || *o.TransferRelationships
}

func (o MergeOptions) ShouldDeleteSource() bool {
	return o.DeleteSource == nil || *o.DeleteSource
}

func BoolPtr(b bool) *bool {
	return &b
}

// RepointStats counts the rows touched while moving references off a source entity.
type RepointStats struct {
	RelationshipsRepointed int64 `json:"relationships_repointed"`
	SelfLoopsRemoved       int64 `json:"self_loops_removed"`
	DuplicatesRemoved      int64 `json:"duplicates_removed"`
	RelationshipsDeleted   int64 `json:"relationships_deleted"`
	FilesMoved             int64 `json:"files_moved"`
	FilesDeleted           int64 `json:"files_deleted"`
}

func (s *RepointStats) Add(o RepointStats) {
	s.RelationshipsRepointed += o.RelationshipsRepointed
	s.SelfLoopsRemoved += o.SelfLoopsRemoved
	s.DuplicatesRemoved += o.DuplicatesRemoved
	s.RelationshipsDeleted += o.RelationshipsDeleted
	s.FilesMoved += o.FilesMoved
	s.FilesDeleted += o.FilesDeleted
}

// MergeResult is returned by a committed merge.
type MergeResult struct {
	Entity *Entity `json:"entity"`
	// MergedIDs are the sources folded into the target, in request order
	MergedIDs []string `json:"merged_ids"`
	// SkippedIDs are sources that were missing and skipped
	SkippedIDs []string     `json:"skipped_ids,omitempty"`
	Stats      RepointStats `json:"stats"`
	// Target is the target entity as it was before the merge
	Target Entity `json:"-"`
	// Sources are the source entities as they were before the merge
	Sources []Entity     `json:"-"`
	Options MergeOptions `json:"-"`
}

// MergeRecord is a best-effort snapshot kept for undo inspection.
type MergeRecord struct {
	ID       string       `json:"id"`
	TargetID string       `json:"target_id"`
	Target   Entity       `json:"target"`
	Sources  []Entity     `json:"sources"`
	Options  MergeOptions `json:"options"`
	MergedAt time.Time    `json:"merged_at"`
}
