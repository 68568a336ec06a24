package matching

import (
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	NameWeight      = 0.4
	TypeWeight      = 0.3
	AttributeWeight = 0.3
)

var confidenceWeights = map[string]float64{
	"name":       NameWeight,
	"type":       TypeWeight,
	"attributes": AttributeWeight,
}

// Confidence is the normalized [0,1] likelihood that a and b describe the same subject.
// Only the components that have something to compare contribute their weight.
func (s *Scorer) Confidence(a, b *models.Entity) float64 {
	if a == nil || b == nil {
		return 0
	}

	scores := map[string]float64{}

	if strings.TrimSpace(a.Name) != "" || strings.TrimSpace(b.Name) != "" {
		scores["name"] = s.NameSimilarity(a.Name, b.Name)
	}

	if a.Type == b.Type {
		scores["type"] = 1
	} else {
		scores["type"] = 0
	}

	if overlap, ok := AttributeOverlap(a.Attributes, b.Attributes); ok {
		scores["attributes"] = overlap
	}

	return s.WeightedScore(scores, confidenceWeights)
}

// AttributeOverlap scores the union of attribute keys: 1 per equal value, 0.5 per key
// present on both sides with different values, 0 per one-sided key, divided by the
// union size. merged_from is bookkeeping and is ignored. ok is false for an empty union.
func AttributeOverlap(a, b models.Attributes) (overlap float64, ok bool) {
	keys := map[string]struct{}{}
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	delete(keys, models.MergedFromKey)

	if len(keys) == 0 {
		return 0, false
	}

	points := 0.0
	for k := range keys {
		av, inA := a[k]
		bv, inB := b[k]
		switch {
		case inA && inB && av.Equal(bv):
			points += 1
		case inA && inB:
			points += 0.5
		}
	}

	return points / float64(len(keys)), true
}
