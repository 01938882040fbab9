// Package scenario models attack scenarios and loads them from YAML files.
package scenario

import (
	"strings"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Mode distinguishes adversarial attack scenarios from QA probes.
type Mode string

const (
	ModeAdversarial Mode = "adversarial"
	ModeQA          Mode = "qa"
)

// IsValid returns true for a known mode.
func (m Mode) IsValid() bool {
	return m == ModeAdversarial || m == ModeQA
}

// AdaptiveSpec configures the evolutionary search for an adaptive scenario.
type AdaptiveSpec struct {
	Seeds          []string `yaml:"seeds" json:"seeds"`
	PopulationSize int      `yaml:"population_size" json:"population_size"`
	MaxGenerations int      `yaml:"max_generations" json:"max_generations"`
	TopK           int      `yaml:"top_k" json:"top_k"`
	Operators      []string `yaml:"operators,omitempty" json:"operators,omitempty"`
}

// AttackScenario is one named attack or QA objective. Exactly one of
// Templates (scripted) or Adaptive must be set.
type AttackScenario struct {
	ID        string        `yaml:"id" json:"id"`
	Name      string        `yaml:"name,omitempty" json:"name,omitempty"`
	Category  string        `yaml:"category" json:"category"`
	Mode      Mode          `yaml:"mode" json:"mode"`
	Objective string        `yaml:"objective" json:"objective"`
	Templates []string      `yaml:"templates,omitempty" json:"templates,omitempty"`
	Adaptive  *AdaptiveSpec `yaml:"adaptive,omitempty" json:"adaptive,omitempty"`
}

// IsAdaptive reports whether this scenario uses evolutionary search.
func (s *AttackScenario) IsAdaptive() bool {
	return s.Adaptive != nil
}

// Validate checks structural invariants of the scenario.
func (s *AttackScenario) Validate() error {
	if s.ID == "" {
		return types.NewError(types.SCENARIO_INVALID, "scenario id is required")
	}
	if s.Category == "" {
		return types.NewError(types.SCENARIO_INVALID, "scenario category is required: "+s.ID)
	}
	if !strings.Contains(s.Category, "/") {
		return types.NewError(types.SCENARIO_INVALID,
			"scenario category must use the mode/name form (e.g. adversarial/owasp_multi_turn): "+s.ID)
	}
	if !s.Mode.IsValid() {
		return types.NewError(types.SCENARIO_INVALID, "scenario mode must be adversarial or qa: "+s.ID)
	}
	if s.Objective == "" {
		return types.NewError(types.SCENARIO_INVALID, "scenario objective is required: "+s.ID)
	}

	hasTemplates := len(s.Templates) > 0
	if hasTemplates == s.IsAdaptive() {
		return types.NewError(types.SCENARIO_INVALID,
			"scenario must declare exactly one of templates or adaptive: "+s.ID)
	}

	if s.Adaptive != nil {
		if s.Adaptive.PopulationSize < 1 {
			return types.NewError(types.SCENARIO_INVALID, "adaptive population_size must be at least 1: "+s.ID)
		}
		if s.Adaptive.MaxGenerations < 1 {
			return types.NewError(types.SCENARIO_INVALID, "adaptive max_generations must be at least 1: "+s.ID)
		}
		if s.Adaptive.TopK < 1 || s.Adaptive.TopK > s.Adaptive.PopulationSize {
			return types.NewError(types.SCENARIO_INVALID, "adaptive top_k must be in [1, population_size]: "+s.ID)
		}
	}

	return nil
}
