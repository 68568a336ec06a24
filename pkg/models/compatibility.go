package models

// Severity ranks an attribute conflict.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// AttributeConflict is a key present on both entities with different values.
type AttributeConflict struct {
	Key         string   `json:"key"`
	SourceValue Value    `json:"source_value"`
	TargetValue Value    `json:"target_value"`
	Severity    Severity `json:"severity"`
}

// Direction of a relationship relative to the analyzed entity.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// RelationshipOverlap is an edge shape both entities already have. Merging collapses the pair into one.
type RelationshipOverlap struct {
	EntityID  string    `json:"entity_id"`
	Type      string    `json:"type"`
	Direction Direction `json:"direction"`
}

// CompatibilityReport is the advisory outcome of comparing a source with a target.
type CompatibilityReport struct {
	SourceID     string                `json:"source_id"`
	TargetID     string                `json:"target_id"`
	Compatible   bool                  `json:"compatible"`
	TypeMismatch bool                  `json:"type_mismatch"`
	Conflicts    []AttributeConflict   `json:"conflicts"`
	Warnings     []string              `json:"warnings"`
	Overlaps     []RelationshipOverlap `json:"relationship_overlaps"`
	// Similarity is the normalized name/type/attribute confidence between the two entities
	Similarity float64 `json:"similarity"`
	Confidence float64 `json:"confidence"`
}

// HasCriticalConflict reports whether any conflict is high severity.
func (r *CompatibilityReport) HasCriticalConflict() bool {
	for _, c := range r.Conflicts {
		if c.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
