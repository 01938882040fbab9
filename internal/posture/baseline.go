package posture

import (
	"encoding/json"
	"os"
	"time"

	"github.com/aiandme-io/humanbound-engine/internal/finding"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Baseline captures a run's outcome for later regression comparison.
type Baseline struct {
	RunID      types.ID          `json:"run_id"`
	Score      float64           `json:"score"`
	Level      string            `json:"level"`
	Signatures map[string]string `json:"signatures"` // signature -> severity
	SavedAt    time.Time         `json:"saved_at"`
}

// Regression is one finding present now but absent (or less severe) in the
// baseline.
type Regression struct {
	Signature   string         `json:"signature"`
	Category    string         `json:"category"`
	Severity    types.Severity `json:"severity"`
	WasSeverity string         `json:"was_severity,omitempty"`
}

// Comparison is the result of checking a run against a baseline.
type Comparison struct {
	BaselineRunID types.ID     `json:"baseline_run_id"`
	ScoreDelta    float64      `json:"score_delta"`
	Regressions   []Regression `json:"regressions"`
	Resolved      []string     `json:"resolved"` // signatures fixed since baseline
}

// Regressed reports whether the run is worse than the baseline.
func (c Comparison) Regressed() bool {
	return len(c.Regressions) > 0
}

// NewBaseline builds a baseline from a scored run.
func NewBaseline(score Score, findings []*finding.Finding) Baseline {
	signatures := make(map[string]string, len(findings))
	for _, f := range findings {
		signatures[f.Signature] = f.Severity.String()
	}

	return Baseline{
		RunID:      score.RunID,
		Score:      score.Value,
		Level:      score.Level,
		Signatures: signatures,
		SavedAt:    time.Now(),
	}
}

// SaveBaseline writes a baseline to a JSON file.
func SaveBaseline(path string, b Baseline) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return types.WrapError(types.EXPORT_FAILED, "failed to encode baseline", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.WrapError(types.EXPORT_FAILED, "failed to write baseline file", err)
	}
	return nil
}

// LoadBaseline reads a baseline from a JSON file.
func LoadBaseline(path string) (Baseline, error) {
	var b Baseline

	data, err := os.ReadFile(path)
	if err != nil {
		return b, types.WrapError(types.STORE_OPEN_FAILED, "failed to read baseline file", err)
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, types.WrapError(types.STORE_OPEN_FAILED, "failed to parse baseline file", err)
	}
	return b, nil
}

// Compare checks a run against a baseline. A regression is a signature the
// baseline did not contain, or one that got more severe. Signatures in the
// baseline but absent now are reported as resolved.
func Compare(baseline Baseline, score Score, findings []*finding.Finding) Comparison {
	cmp := Comparison{
		BaselineRunID: baseline.RunID,
		ScoreDelta:    score.Value - baseline.Score,
	}

	current := make(map[string]bool, len(findings))
	for _, f := range findings {
		current[f.Signature] = true

		was, known := baseline.Signatures[f.Signature]
		if !known {
			cmp.Regressions = append(cmp.Regressions, Regression{
				Signature: f.Signature,
				Category:  f.Category,
				Severity:  f.Severity,
			})
			continue
		}

		wasSev, err := types.ParseSeverity(was)
		if err == nil && f.Severity.Rank() > wasSev.Rank() {
			cmp.Regressions = append(cmp.Regressions, Regression{
				Signature:   f.Signature,
				Category:    f.Category,
				Severity:    f.Severity,
				WasSeverity: was,
			})
		}
	}

	for sig := range baseline.Signatures {
		if !current[sig] {
			cmp.Resolved = append(cmp.Resolved, sig)
		}
	}

	return cmp
}
