package compatibility

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func entity(id, folder, typ, name string, attrs models.Attributes) *models.Entity {
	return &models.Entity{ID: id, FolderID: folder, Type: typ, Name: name, Attributes: attrs}
}

func rel(id, from, to, typ string) models.Relationship {
	return models.Relationship{ID: id, FromEntity: from, ToEntity: to, Type: typ}
}

func TestAnalyze_IdenticalPair(t *testing.T) {
	a := NewAnalyzer(nil, nil)
	src := entity("s", "f1", "person", "Jane Doe", models.Attributes{"email": models.String("JANE@x.com ")})
	tgt := entity("t", "f1", "person", "Jane Doe", models.Attributes{"email": models.String("jane@x.com")})

	report := a.Analyze(src, tgt, nil, nil)
	assert.True(t, report.Compatible)
	assert.False(t, report.TypeMismatch)
	assert.Empty(t, report.Conflicts, "emails compare normalized")
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 1.0, report.Confidence)
	assert.InDelta(t, 0.85, report.Similarity, 1e-9)
}

func TestAnalyze_Severities(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	tests := []struct {
		name       string
		typ        string
		key        string
		severity   models.Severity
		compatible bool
	}{
		{"person email is critical", "person", "email", models.SeverityHigh, false},
		{"person phone is critical", "person", "phone", models.SeverityHigh, false},
		{"organization siret is critical", "organization", "siret", models.SeverityHigh, false},
		{"email is not critical for places", "place", "email", models.SeverityLow, true},
		{"address is medium", "person", "address", models.SeverityMedium, true},
		{"website is medium", "organization", "website", models.SeverityMedium, true},
		{"anything else is low", "person", "eye_color", models.SeverityLow, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := entity("s", "f1", tt.typ, "Same", models.Attributes{tt.key: models.String("one value")})
			tgt := entity("t", "f1", tt.typ, "Same", models.Attributes{tt.key: models.String("another value")})

			report := a.Analyze(src, tgt, nil, nil)
			require.Len(t, report.Conflicts, 1)
			assert.Equal(t, tt.key, report.Conflicts[0].Key)
			assert.Equal(t, tt.severity, report.Conflicts[0].Severity)
			assert.Equal(t, tt.compatible, report.Compatible)
			if tt.compatible {
				assert.InDelta(t, 0.85, report.Confidence, 1e-9)
			} else {
				assert.Equal(t, 0.0, report.Confidence)
			}
		})
	}
}

func TestAnalyze_TypeMismatch(t *testing.T) {
	report := NewAnalyzer(nil, nil).Analyze(
		entity("s", "f1", "place", "Paris", nil),
		entity("t", "f1", "person", "Paris", nil),
		nil, nil,
	)
	assert.True(t, report.TypeMismatch)
	assert.False(t, report.Compatible)
	assert.Equal(t, 0.0, report.Confidence)
}

func TestAnalyze_WarningsAndOverlaps(t *testing.T) {
	a := NewAnalyzer(nil, nil)
	src := entity("s", "f1", "person", "Bob", models.Attributes{"nickname": models.String("bobby")})
	tgt := entity("t", "f2", "person", "Alexandra", models.Attributes{"nickname": models.String("al")})

	sourceEdges := []models.Relationship{
		rel("r1", "s", "acme", "works_at"),
		rel("r2", "club", "s", "member"),
		rel("r3", "s", "t", "knows"),
		rel("r4", "s", "paris", "lives_in"),
	}
	targetEdges := []models.Relationship{
		rel("r5", "t", "acme", "works_at"),
		rel("r6", "club", "t", "member"),
		rel("r3", "s", "t", "knows"),
		rel("r7", "paris", "t", "lives_in"),
	}

	report := a.Analyze(src, tgt, sourceEdges, targetEdges)
	assert.True(t, report.Compatible)
	assert.Len(t, report.Warnings, 3, "folders, names, direct edge: %v", report.Warnings)
	assert.Equal(t, []models.RelationshipOverlap{
		{EntityID: "acme", Type: "works_at", Direction: models.DirectionOutgoing},
		{EntityID: "club", Type: "member", Direction: models.DirectionIncoming},
	}, report.Overlaps)
	require.Len(t, report.Conflicts, 1)

	// 1 - 3*0.1 - 0.15 - 2*0.05
	assert.InDelta(t, 0.45, report.Confidence, 1e-9)
}

func TestAnalyze_ConfidenceClampsAtZero(t *testing.T) {
	attrsS := models.Attributes{}
	attrsT := models.Attributes{}
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		attrsS[k] = models.String("left")
		attrsT[k] = models.String("right")
	}
	report := NewAnalyzer(nil, nil).Analyze(
		entity("s", "f1", "person", "X", attrsS),
		entity("t", "f1", "person", "X", attrsT),
		nil, nil,
	)
	assert.True(t, report.Compatible)
	assert.Equal(t, 0.0, report.Confidence)
}

func TestAnalyze_IgnoresMergedFromAndOneSidedKeys(t *testing.T) {
	report := NewAnalyzer(nil, nil).Analyze(
		entity("s", "f1", "person", "X", models.Attributes{
			models.MergedFromKey: models.Strings("a"),
			"only_source":        models.String("v"),
			"phone":              models.Null(),
		}),
		entity("t", "f1", "person", "X", models.Attributes{
			models.MergedFromKey: models.Strings("b"),
			"only_target":        models.String("v"),
			"phone":              models.String("555"),
		}),
		nil, nil,
	)
	assert.Empty(t, report.Conflicts)
	assert.True(t, report.Compatible)
}

func TestRules(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		rules := DefaultRules()
		assert.Equal(t, []string{"email", "phone"}, rules.CriticalAttributes["person"])
		assert.Equal(t, []string{"siret", "registration_number"}, rules.CriticalAttributes["organization"])
		assert.Equal(t, 0.5, rules.NameSimilarityWarning)
		assert.Equal(t, Penalties{Warning: 0.1, Conflict: 0.15, Overlap: 0.05}, rules.Penalties)
	})

	t.Run("file overrides only what it names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("critical_attributes:\n  vehicle: [vin]\npenalties:\n  overlap: 0.2\n"), 0o600))

		rules, err := LoadRules(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"vin"}, rules.CriticalAttributes["vehicle"])
		assert.Equal(t, []string{"email", "phone"}, rules.CriticalAttributes["person"])
		assert.Equal(t, 0.2, rules.Penalties.Overlap)
		assert.Equal(t, 0.15, rules.Penalties.Conflict)
		assert.Equal(t, models.SeverityHigh, rules.Severity("vehicle", "vin"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseRules([]byte("penalties: [oops"))
		assert.Error(t, err)
	})
}
