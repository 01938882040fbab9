// Package strategy provides the attack prompt generators that drive a
// conversation: a deterministic scripted variant and an evolutionary
// adaptive variant steered by judge feedback.
package strategy

import (
	"context"

	"github.com/aiandme-io/humanbound-engine/internal/judge"
)

// Strategy produces the next attack prompt for a conversation and consumes
// verdict feedback. NextPrompt returns ok=false when the strategy has
// concluded; the orchestrator treats that as a clean stop, not an error.
type Strategy interface {
	NextPrompt(ctx context.Context, history []judge.Exchange) (prompt string, ok bool, err error)
	OnVerdict(v judge.Verdict)
}
