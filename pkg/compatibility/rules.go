package compatibility

import (
	_ "embed"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/fern/pkg/models"
)

//go:embed rules.yaml
var defaultRules []byte

// Penalties are subtracted from a report's confidence per finding.
type Penalties struct {
	Warning  float64 `yaml:"warning"`
	Conflict float64 `yaml:"conflict"`
	Overlap  float64 `yaml:"overlap"`
}

// Rules configures severities and confidence penalties.
type Rules struct {
	CriticalAttributes    map[string][]string `yaml:"critical_attributes"`
	MediumAttributes      []string            `yaml:"medium_attributes"`
	NameSimilarityWarning float64             `yaml:"name_similarity_warning"`
	Penalties             Penalties           `yaml:"penalties"`
}

// DefaultRules returns the embedded rule set
func DefaultRules() *Rules {
	rules := &Rules{}
	if err := yaml.Unmarshal(defaultRules, rules); err != nil {
		panic(errors.Wrap(err, "embedded compatibility rules are invalid"))
	}
	return rules
}

// ParseRules decodes YAML over the embedded defaults, so a file only needs the keys it changes.
// Lists and per-type entries given in data replace the default ones.
func ParseRules(data []byte) (*Rules, error) {
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, errors.Wrap(err, "failed to parse compatibility rules")
	}
	return rules, nil
}

// LoadRules reads rules from path. An empty path yields the defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read compatibility rules %s", path)
	}
	return ParseRules(data)
}

// Severity classifies a conflict on key for an entity of entityType.
func (r *Rules) Severity(entityType, key string) models.Severity {
	for _, k := range r.CriticalAttributes[entityType] {
		if k == key {
			return models.SeverityHigh
		}
	}
	for _, k := range r.MediumAttributes {
		if k == key {
			return models.SeverityMedium
		}
	}
	return models.SeverityLow
}
