package guardrail

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Export writes a rule set to a file. The format follows the file
// extension: .json for JSON, .yaml/.yml for YAML.
func Export(path string, set *RuleSet) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(set, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(set)
	default:
		return types.NewError(types.EXPORT_FAILED, "unsupported export format: "+filepath.Ext(path))
	}
	if err != nil {
		return types.WrapError(types.EXPORT_FAILED, "failed to encode rule set", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.WrapError(types.EXPORT_FAILED, "failed to write rule set file", err)
	}
	return nil
}

// Load reads a previously exported rule set.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to read rule set file", err)
	}

	var set RuleSet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &set)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &set)
	default:
		return nil, types.NewError(types.STORE_OPEN_FAILED, "unsupported rule set format: "+filepath.Ext(path))
	}
	if err != nil {
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to parse rule set file", err)
	}

	return &set, nil
}
