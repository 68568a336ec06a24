package models

// Cluster is a group of entities judged likely duplicates. It is never persisted.
type Cluster struct {
	Members []Entity `json:"members"`
	Score   float64  `json:"score"`
}

// MemberIDs returns the ids of the cluster members in order.
func (c Cluster) MemberIDs() []string {
	ids := make([]string, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}
	return ids
}

// Suggestion pairs two cluster members with their scores and compatibility report.
type Suggestion struct {
	SourceID   string               `json:"source_id"`
	TargetID   string               `json:"target_id"`
	RawScore   float64              `json:"raw_score"`
	Confidence float64              `json:"confidence"`
	Report     *CompatibilityReport `json:"report"`
}
