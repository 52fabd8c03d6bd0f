// Package filter selects which inventory entries the collector monitors.
package filter

import (
	"github.com/samber/lo"

	"contmon/internal/container"
)

// Spec lists the selection rules. Rules are OR-ed: an entity is selected when
// any single rule matches it. There are no exclusion rules.
type Spec struct {
	IDs           []string `mapstructure:"ids" yaml:"ids"`
	NamePatterns  []string `mapstructure:"name_patterns" yaml:"name_patterns"`
	ImagePatterns []string `mapstructure:"image_patterns" yaml:"image_patterns"`
}

// Empty reports whether the spec has no rules at all, in which case Select
// passes every entity through.
func (s Spec) Empty() bool {
	return len(s.IDs) == 0 && len(s.NamePatterns) == 0 && len(s.ImagePatterns) == 0
}

// Select returns the entities matched by spec, preserving order. An empty spec
// returns entities unchanged.
func Select(entities []container.Entity, spec Spec) []container.Entity {
	if spec.Empty() {
		return entities
	}

	ids := lo.SliceToMap(spec.IDs, func(id string) (string, struct{}) {
		return id, struct{}{}
	})

	return lo.Filter(entities, func(e container.Entity, _ int) bool {
		if _, ok := ids[e.ID]; ok {
			return true
		}
		if matchAny(e.Name, spec.NamePatterns) {
			return true
		}
		return matchAny(e.Image, spec.ImagePatterns)
	})
}

func matchAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if Match(text, p) {
			return true
		}
	}
	return false
}
