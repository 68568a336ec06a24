// Package merging folds source entities into a target inside one transaction
package merging

import (
	"unicode/utf8"

	"github.com/Ramsey-B/fern/pkg/models"
)

// AttributeMerger handles attribute-level merge logic. Inputs are never mutated.
type AttributeMerger struct{}

// NewAttributeMerger creates a new AttributeMerger
func NewAttributeMerger() *AttributeMerger {
	return &AttributeMerger{}
}

// Merge folds source into target using strategy. prefer only affects StrategyDeepMerge.
func (m *AttributeMerger) Merge(target, source models.Attributes, strategy models.Strategy, prefer models.Prefer) models.Attributes {
	switch strategy {
	case models.StrategyTargetPriority:
		return m.overlay(source, target)
	case models.StrategySourcePriority:
		return m.overlay(target, source)
	case models.StrategyDeepMerge:
		return m.DeepMerge(target, source, prefer)
	default:
		return m.mergeAll(target, source)
	}
}

// overlay copies base then writes every key of top over it
func (m *AttributeMerger) overlay(base, top models.Attributes) models.Attributes {
	result := base.Clone()
	for k, v := range top {
		result[k] = v.Clone()
	}
	return result
}

// mergeAll reconciles key by key: arrays are unioned, the longer string wins
// (target on ties) and any other conflict keeps the target value.
func (m *AttributeMerger) mergeAll(target, source models.Attributes) models.Attributes {
	result := target.Clone()
	for k, sv := range source {
		tv, ok := result[k]
		if !ok || tv.IsNull() {
			result[k] = sv.Clone()
			continue
		}

		if tArr, ok := tv.AsArray(); ok {
			if sArr, ok := sv.AsArray(); ok {
				result[k] = models.Array(unionValues(tArr, sArr)...)
				continue
			}
		}

		if ts, ok := tv.AsString(); ok {
			if ss, ok := sv.AsString(); ok && utf8.RuneCountInString(ss) > utf8.RuneCountInString(ts) {
				result[k] = sv
			}
		}
	}
	return result
}

// DeepMerge merges nested objects recursively and unions arrays. Scalar conflicts keep the
// target unless it is absent (or null) or prefer is PreferSource.
func (m *AttributeMerger) DeepMerge(target, source models.Attributes, prefer models.Prefer) models.Attributes {
	result := target.Clone()
	for k, sv := range source {
		tv, ok := result[k]
		if !ok {
			result[k] = sv.Clone()
			continue
		}
		result[k] = deepMergeValue(tv, sv, prefer)
	}
	return result
}

func deepMergeValue(tv, sv models.Value, prefer models.Prefer) models.Value {
	if tArr, ok := tv.AsArray(); ok {
		if sArr, ok := sv.AsArray(); ok {
			return models.Array(unionValues(tArr, sArr)...)
		}
	}

	if tObj, ok := tv.AsObject(); ok {
		if sObj, ok := sv.AsObject(); ok {
			merged := make(map[string]models.Value, len(tObj))
			for k, v := range tObj {
				merged[k] = v.Clone()
			}
			for k, v := range sObj {
				existing, ok := merged[k]
				if !ok {
					merged[k] = v.Clone()
					continue
				}
				merged[k] = deepMergeValue(existing, v, prefer)
			}
			return models.Object(merged)
		}
	}

	if tv.IsNull() || prefer == models.PreferSource {
		return sv.Clone()
	}
	return tv
}

// unionValues concatenates a and b dropping repeated scalars. Objects and arrays are
// compared by identity only, so they are always kept.
func unionValues(a, b []models.Value) []models.Value {
	out := make([]models.Value, 0, len(a)+len(b))
	seen := make([]models.Value, 0, len(a)+len(b))

	add := func(v models.Value) {
		if v.IsScalar() {
			for _, s := range seen {
				if s.Equal(v) {
					return
				}
			}
			seen = append(seen, v)
		}
		out = append(out, v.Clone())
	}

	for _, v := range a {
		add(v)
	}
	for _, v := range b {
		add(v)
	}
	return out
}

// Absorb folds the attributes of source entity sourceID into target. merged_from never
// goes through the strategy: the result lists the target's ids, then the source's ids,
// then sourceID, each once.
func (m *AttributeMerger) Absorb(target, source models.Attributes, sourceID string, strategy models.Strategy, prefer models.Prefer) models.Attributes {
	lineage := unionValues(mergedFromIDs(target), mergedFromIDs(source))

	result := m.Merge(withoutMergedFrom(target), withoutMergedFrom(source), strategy, prefer)
	if len(lineage) > 0 {
		result[models.MergedFromKey] = models.Array(lineage...)
	}
	return AppendMergedFrom(result, sourceID)
}

func withoutMergedFrom(attrs models.Attributes) models.Attributes {
	out := make(models.Attributes, len(attrs))
	for k, v := range attrs {
		if k != models.MergedFromKey {
			out[k] = v
		}
	}
	return out
}

// mergedFromIDs reads merged_from. A single string counts as a one element list.
func mergedFromIDs(attrs models.Attributes) []models.Value {
	switch existing := attrs[models.MergedFromKey]; existing.Kind() {
	case models.KindArray:
		ids, _ := existing.AsArray()
		return ids
	case models.KindString:
		return []models.Value{existing}
	}
	return nil
}

// AppendMergedFrom records id under merged_from without duplicating it. Earlier ids are kept.
func AppendMergedFrom(attrs models.Attributes, id string) models.Attributes {
	result := attrs.Clone()
	ids := mergedFromIDs(result)

	for _, v := range ids {
		if s, ok := v.AsString(); ok && s == id {
			return result
		}
	}

	ids = append(ids, models.String(id))
	result[models.MergedFromKey] = models.Array(ids...)
	return result
}
