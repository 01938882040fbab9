package strategy

import (
	"context"
	"strings"

	"github.com/aiandme-io/humanbound-engine/internal/judge"
)

// TokenBotLast substitutes the bot's most recent disclosure into a template,
// letting later templates chain on earlier responses.
const TokenBotLast = "$BOT_LAST"

// Scripted emits an ordered list of prompt templates, one per call, then
// stops. Verdicts are ignored.
type Scripted struct {
	templates []string
	next      int
}

var _ Strategy = (*Scripted)(nil)

// NewScripted creates a scripted strategy over the given templates.
func NewScripted(templates []string) *Scripted {
	return &Scripted{templates: templates}
}

// NextPrompt returns the next unconsumed template with $BOT_LAST resolved
// against the latest bot response, or ok=false once the list is exhausted.
func (s *Scripted) NextPrompt(_ context.Context, history []judge.Exchange) (string, bool, error) {
	if s.next >= len(s.templates) {
		return "", false, nil
	}

	template := s.templates[s.next]
	s.next++

	if strings.Contains(template, TokenBotLast) {
		botLast := ""
		if len(history) > 0 {
			botLast = history[len(history)-1].Response
		}
		template = strings.ReplaceAll(template, TokenBotLast, botLast)
	}

	return template, true, nil
}

// OnVerdict is a no-op for scripted runs.
func (s *Scripted) OnVerdict(judge.Verdict) {}
