package scenario

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// scenarioFile is the on-disk document shape: a list of scenarios under a
// top-level key, so files stay self-describing.
type scenarioFile struct {
	Scenarios []*AttackScenario `yaml:"scenarios"`
}

// LoadFile parses and validates all scenarios in one YAML file.
func LoadFile(path string) ([]*AttackScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.SCENARIO_LOAD_FAILED, "failed to read scenario file", err)
	}

	var doc scenarioFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.WrapError(types.SCENARIO_LOAD_FAILED, "failed to parse scenario file "+path, err)
	}

	if len(doc.Scenarios) == 0 {
		return nil, types.NewError(types.SCENARIO_LOAD_FAILED, "no scenarios in file "+path)
	}

	seen := make(map[string]bool, len(doc.Scenarios))
	for _, s := range doc.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.ID] {
			return nil, types.NewError(types.SCENARIO_INVALID, "duplicate scenario id: "+s.ID)
		}
		seen[s.ID] = true
	}

	return doc.Scenarios, nil
}

// LoadDir loads every *.yaml and *.yml file in a directory, sorted by file
// name for a stable scenario order.
func LoadDir(dir string) ([]*AttackScenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.WrapError(types.SCENARIO_LOAD_FAILED, "failed to read scenario directory", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, types.NewError(types.SCENARIO_LOAD_FAILED, "no scenario files in "+dir)
	}

	var out []*AttackScenario
	seen := make(map[string]bool)
	for _, path := range paths {
		scenarios, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, s := range scenarios {
			if seen[s.ID] {
				return nil, types.NewError(types.SCENARIO_INVALID, "duplicate scenario id across files: "+s.ID)
			}
			seen[s.ID] = true
			out = append(out, s)
		}
	}

	return out, nil
}
