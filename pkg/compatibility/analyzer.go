// Package compatibility builds advisory pre-merge reports. It never blocks a merge itself.
package compatibility

import (
	"fmt"
	"sort"

	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Analyzer compares a merge source with its target.
type Analyzer struct {
	rules  *Rules
	scorer *matching.Scorer
}

// NewAnalyzer creates an analyzer. nil rules use the defaults.
func NewAnalyzer(rules *Rules, scorer *matching.Scorer) *Analyzer {
	if rules == nil {
		rules = DefaultRules()
	}
	if scorer == nil {
		scorer = matching.NewScorer()
	}
	return &Analyzer{rules: rules, scorer: scorer}
}

func (a *Analyzer) Rules() *Rules {
	return a.rules
}

// Analyze reports conflicts, warnings and edge overlaps for merging source into target.
// sourceEdges and targetEdges are every relationship touching each entity.
func (a *Analyzer) Analyze(source, target *models.Entity, sourceEdges, targetEdges []models.Relationship) *models.CompatibilityReport {
	report := &models.CompatibilityReport{
		SourceID:   source.ID,
		TargetID:   target.ID,
		Conflicts:  []models.AttributeConflict{},
		Warnings:   []string{},
		Overlaps:   []models.RelationshipOverlap{},
		Similarity: a.scorer.Confidence(source, target),
	}

	report.TypeMismatch = source.Type != target.Type
	if report.TypeMismatch {
		report.Warnings = append(report.Warnings, fmt.Sprintf("entity types differ: %s vs %s", source.Type, target.Type))
	}

	report.Conflicts = a.conflicts(source, target)
	report.Warnings = append(report.Warnings, a.warnings(source, target, targetEdges)...)
	report.Overlaps = overlaps(source.ID, target.ID, sourceEdges, targetEdges)

	report.Compatible = !report.TypeMismatch && !report.HasCriticalConflict()
	report.Confidence = a.confidence(report)
	return report
}

func (a *Analyzer) conflicts(source, target *models.Entity) []models.AttributeConflict {
	conflicts := []models.AttributeConflict{}
	for _, key := range target.Attributes.Keys() {
		if key == models.MergedFromKey {
			continue
		}
		tv := target.Attributes[key]
		sv, ok := source.Attributes[key]
		if !ok || sv.IsNull() || tv.IsNull() {
			continue
		}
		if normalizers.NormalizeForKey(key, sv).Equal(normalizers.NormalizeForKey(key, tv)) {
			continue
		}
		conflicts = append(conflicts, models.AttributeConflict{
			Key:         key,
			SourceValue: sv,
			TargetValue: tv,
			Severity:    a.rules.Severity(target.Type, key),
		})
	}
	return conflicts
}

// warnings covers findings that lower confidence without being conflicts. The type
// mismatch warning is added by Analyze and is not counted here.
func (a *Analyzer) warnings(source, target *models.Entity, targetEdges []models.Relationship) []string {
	warnings := []string{}

	if source.FolderID != target.FolderID {
		warnings = append(warnings, fmt.Sprintf("entities belong to different folders: %s vs %s", source.FolderID, target.FolderID))
	}

	if sim := a.scorer.NameSimilarity(source.Name, target.Name); sim < a.rules.NameSimilarityWarning {
		warnings = append(warnings, fmt.Sprintf("names are very different (similarity %.2f): %q vs %q", sim, source.Name, target.Name))
	}

	for _, rel := range targetEdges {
		if rel.Touches(source.ID) && rel.Touches(target.ID) {
			warnings = append(warnings, fmt.Sprintf("direct %s relationship %s between the entities will be removed", rel.Type, rel.ID))
		}
	}

	return warnings
}

type edgeShape struct {
	other     string
	typ       string
	direction models.Direction
}

func shapes(entityID string, edges []models.Relationship, exclude string) map[edgeShape]struct{} {
	out := make(map[edgeShape]struct{}, len(edges))
	for _, rel := range edges {
		switch {
		case rel.FromEntity == entityID && rel.ToEntity != exclude:
			out[edgeShape{rel.ToEntity, rel.Type, models.DirectionOutgoing}] = struct{}{}
		case rel.ToEntity == entityID && rel.FromEntity != exclude:
			out[edgeShape{rel.FromEntity, rel.Type, models.DirectionIncoming}] = struct{}{}
		}
	}
	return out
}

// overlaps lists edges both entities hold to the same third entity with the same type and
// direction. The merge collapses each pair into one.
func overlaps(sourceID, targetID string, sourceEdges, targetEdges []models.Relationship) []models.RelationshipOverlap {
	targetShapes := shapes(targetID, targetEdges, sourceID)
	out := []models.RelationshipOverlap{}
	for shape := range shapes(sourceID, sourceEdges, targetID) {
		if _, ok := targetShapes[shape]; ok {
			out = append(out, models.RelationshipOverlap{EntityID: shape.other, Type: shape.typ, Direction: shape.direction})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}

func (a *Analyzer) confidence(report *models.CompatibilityReport) float64 {
	if !report.Compatible {
		return 0
	}
	p := a.rules.Penalties
	c := 1.0 -
		p.Warning*float64(len(report.Warnings)) -
		p.Conflict*float64(len(report.Conflicts)) -
		p.Overlap*float64(len(report.Overlaps))
	return clamp(c)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
