package matching

import (
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// FieldRule awards Points when both entities carry the same normalized value for a field.
type FieldRule struct {
	// Keys are read in order; the first string value found is used
	Keys       []string
	Normalizer string
	Points     float64
}

// SocialHandlePoints is awarded for each social handle shared by both entities.
const SocialHandlePoints = 15.0

// DefaultRules are the contact field rules used for clustering.
var DefaultRules = []FieldRule{
	{Keys: []string{"email"}, Normalizer: "nemail", Points: 70},
	{Keys: []string{"phone"}, Normalizer: "nphone", Points: 60},
	{Keys: []string{"url", "website"}, Normalizer: "nurl", Points: 30},
}

// RawScore is the unbounded match score used for clustering.
// Entities of different types are never compared and score 0.
func (s *Scorer) RawScore(a, b *models.Entity) float64 {
	if a == nil || b == nil || a.Type != b.Type {
		return 0
	}

	score := 0.0
	for _, rule := range s.rules {
		av := normalizedField(a.Attributes, rule)
		if av == "" {
			continue
		}
		if av == normalizedField(b.Attributes, rule) {
			score += rule.Points
		}
	}

	aHandles := SocialHandles(a.Attributes)
	bHandles := SocialHandles(b.Attributes)
	for key, handle := range aHandles {
		if handle != "" && bHandles[key] == handle {
			score += SocialHandlePoints
		}
	}

	return score
}

func normalizedField(attrs models.Attributes, rule FieldRule) string {
	for _, key := range rule.Keys {
		if raw, ok := attrs.GetString(key); ok && raw != "" {
			return normalizers.Apply(raw, rule.Normalizer)
		}
	}
	return ""
}

// SocialHandles collects normalized handles from top-level keys and from a nested
// "social" object. Top-level keys win when both are present.
func SocialHandles(attrs models.Attributes) map[string]string {
	handles := map[string]string{}
	if social, ok := attrs["social"].AsObject(); ok {
		for k, v := range normalizers.NormalizeSocialHandles(models.Attributes(social)) {
			handles[k] = v
		}
	}
	for k, v := range normalizers.NormalizeSocialHandles(attrs) {
		handles[k] = v
	}
	return handles
}
