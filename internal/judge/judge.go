// Package judge evaluates bot responses against a scenario objective and
// produces verdicts. Judges are treated as noisy: confidence is part of
// the contract so aggregation can weight uncertain verdicts down.
package judge

import (
	"context"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Exchange is one prior prompt/response pair handed to the judge as context.
type Exchange struct {
	Prompt   string
	Response string
}

// Verdict is the judge's assessment of a single turn.
type Verdict struct {
	Passed     bool           `json:"passed"`
	Severity   types.Severity `json:"severity"`
	Category   string         `json:"category"`
	Rationale  string         `json:"rationale"`
	Confidence float64        `json:"confidence"`
	Unjudged   bool           `json:"unjudged,omitempty"`
}

// Unjudged returns the fail-open verdict recorded when the judge itself
// fails. The turn counts as passed with zero confidence, and the flag keeps
// it distinguishable from a genuine pass in output.
func Unjudged() Verdict {
	return Verdict{
		Passed:     true,
		Severity:   types.SeverityInfo,
		Confidence: 0,
		Unjudged:   true,
	}
}

// Judge evaluates one turn of a conversation.
type Judge interface {
	Evaluate(ctx context.Context, objective, prompt, response string, history []Exchange) (Verdict, error)
}
