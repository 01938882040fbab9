// Package conversation runs the multi-turn state machine driving one
// attack scenario against the target bot.
package conversation

import (
	"time"

	"github.com/aiandme-io/humanbound-engine/internal/judge"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Turn is one prompt/response/verdict triple. Immutable once recorded.
type Turn struct {
	Index     int           `json:"index"`
	Prompt    string        `json:"prompt"`
	Response  string        `json:"response"`
	Verdict   judge.Verdict `json:"verdict"`
	Timestamp time.Time     `json:"timestamp"`
	Latency   time.Duration `json:"latency"`
}

// Conversation is the record of one scenario execution. It is owned
// exclusively by the orchestrator running it and never shared across
// workers while in flight.
type Conversation struct {
	ID         types.ID           `json:"id"`
	RunID      types.ID           `json:"run_id"`
	ScenarioID string             `json:"scenario_id"`
	Category   string             `json:"category"`
	Status     Status             `json:"status"`
	Turns      []Turn             `json:"turns"`
	ThreadID   string             `json:"thread_id,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	EndedAt    time.Time          `json:"ended_at,omitempty"`
	Error      string             `json:"error,omitempty"`
	Level      types.TestingLevel `json:"level"`
}

// transition moves the conversation to the target status, guarding against
// invalid transitions.
func (c *Conversation) transition(target Status) error {
	if !c.Status.CanTransitionTo(target) {
		return types.NewError(types.RUN_SYSTEMIC_FAILED,
			"invalid conversation transition from "+c.Status.String()+" to "+target.String())
	}
	c.Status = target
	return nil
}

// history projects recorded turns into judge exchanges.
func (c *Conversation) history() []judge.Exchange {
	out := make([]judge.Exchange, 0, len(c.Turns))
	for _, t := range c.Turns {
		out = append(out, judge.Exchange{Prompt: t.Prompt, Response: t.Response})
	}
	return out
}
