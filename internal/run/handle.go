package run

import (
	"context"
	"sync"

	"github.com/aiandme-io/humanbound-engine/internal/conversation"
	"github.com/aiandme-io/humanbound-engine/internal/finding"
	"github.com/aiandme-io/humanbound-engine/internal/guardrail"
	"github.com/aiandme-io/humanbound-engine/internal/posture"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// String returns the status as a string.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true once the run can no longer change state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Handle observes one run in flight. Results become available once the
// run reaches a terminal status; Cancel flushes whatever finished first.
type Handle struct {
	runID  types.ID
	level  types.TestingLevel
	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.RWMutex
	status        Status
	conversations []*conversation.Conversation
	findings      []*finding.Finding
	coverage      map[string]finding.Coverage
	score         posture.Score
	err           error
}

func newHandle(runID types.ID, level types.TestingLevel, cancel context.CancelFunc) *Handle {
	return &Handle{
		runID:  runID,
		level:  level,
		cancel: cancel,
		done:   make(chan struct{}),
		status: StatusQueued,
	}
}

// RunID returns the run identifier.
func (h *Handle) RunID() types.ID {
	return h.runID
}

// Level returns the testing level the run executes at.
func (h *Handle) Level() types.TestingLevel {
	return h.level
}

// Status returns the current run status.
func (h *Handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Err returns the run-level error, if the run failed.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Conversations returns the finished conversations.
func (h *Handle) Conversations() []*conversation.Conversation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conversations
}

// Findings returns the deduplicated findings recorded so far.
func (h *Handle) Findings() []*finding.Finding {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.findings
}

// Coverage returns attempt/found counts per category.
func (h *Handle) Coverage() map[string]finding.Coverage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.coverage
}

// Posture returns the computed posture score.
func (h *Handle) Posture() posture.Score {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.score
}

// Guardrails synthesizes a vendor rule set from the run's findings.
func (h *Handle) Guardrails(vendor guardrail.Vendor) (*guardrail.RuleSet, error) {
	return guardrail.NewSynthesizer().Synthesize(h.runID, vendor, h.Findings())
}

// Wait blocks until the run reaches a terminal status or ctx expires.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the run. Conversations already finished keep their results.
func (h *Handle) Cancel() {
	h.cancel()
}

func (h *Handle) setStatus(s Status) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
}

func (h *Handle) setResults(convs []*conversation.Conversation, findings []*finding.Finding, coverage map[string]finding.Coverage, score posture.Score) {
	h.mu.Lock()
	h.conversations = convs
	h.findings = findings
	h.coverage = coverage
	h.score = score
	h.mu.Unlock()
}

func (h *Handle) complete() {
	h.mu.Lock()
	h.status = StatusCompleted
	h.mu.Unlock()
	close(h.done)
}

func (h *Handle) fail(err error) {
	h.mu.Lock()
	h.status = StatusFailed
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
