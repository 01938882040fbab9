// Package finding aggregates failing verdicts across conversations into
// deduplicated findings and tracks category coverage.
package finding

import (
	"time"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Finding is a deduplicated record of a failing verdict. Subsequent
// occurrences of the same signature increment OccurrenceCount instead of
// creating duplicates.
type Finding struct {
	ID              types.ID       `json:"id"`
	RunID           types.ID       `json:"run_id"`
	Category        string         `json:"category"`
	JudgeCategory   string         `json:"judge_category,omitempty"`
	Signature       string         `json:"signature"`
	Severity        types.Severity `json:"severity"`
	Rationale       string         `json:"rationale"`
	Confidence      float64        `json:"confidence"`
	Prompt          string         `json:"prompt"`
	Response        string         `json:"response"`
	OccurrenceCount int            `json:"occurrence_count"`
	FirstSeen       time.Time      `json:"first_seen"`
	LastSeen        time.Time      `json:"last_seen"`
}

// Coverage summarizes attempts and findings for one category.
type Coverage struct {
	Attempted int `json:"attempted"`
	Found     int `json:"found"`
}
