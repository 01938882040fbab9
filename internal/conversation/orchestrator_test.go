package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiandme-io/humanbound-engine/internal/integration"
	"github.com/aiandme-io/humanbound-engine/internal/judge"
	"github.com/aiandme-io/humanbound-engine/internal/strategy"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// fakeAdapter scripts adapter behavior per test.
type fakeAdapter struct {
	requiresAuth   bool
	requiresInit   bool
	authErr        error
	initErr        error
	sendErr        error
	sendErrAfter   int
	sendDelay      time.Duration
	honorCtx       bool
	replies        []string
	sent           []string
	authCalls      int
	initCalls      int
	sessionThreads []string
}

func (f *fakeAdapter) RequiresAuth() bool       { return f.requiresAuth }
func (f *fakeAdapter) RequiresThreadInit() bool { return f.requiresInit }

func (f *fakeAdapter) Authenticate(ctx context.Context) (string, error) {
	f.authCalls++
	if f.authErr != nil {
		return "", f.authErr
	}
	return "tok", nil
}

func (f *fakeAdapter) InitThread(ctx context.Context, authToken string) (string, error) {
	f.initCalls++
	if f.initErr != nil {
		return "", f.initErr
	}
	return "thread-1", nil
}

func (f *fakeAdapter) SendMessage(ctx context.Context, session integration.Session, prompt string, history []integration.HistoryEntry) (integration.Reply, error) {
	if f.sendErr != nil && len(f.sent) >= f.sendErrAfter {
		return integration.Reply{}, f.sendErr
	}
	if f.sendDelay > 0 {
		if f.honorCtx {
			select {
			case <-time.After(f.sendDelay):
			case <-ctx.Done():
				return integration.Reply{}, types.WrapRetryableError(types.ENDPOINT_TIMEOUT, "call aborted", ctx.Err())
			}
		} else {
			time.Sleep(f.sendDelay)
		}
	}
	f.sent = append(f.sent, prompt)
	f.sessionThreads = append(f.sessionThreads, session.ThreadID)
	reply := "ok"
	if len(f.replies) >= len(f.sent) {
		reply = f.replies[len(f.sent)-1]
	}
	return integration.Reply{Text: reply}, nil
}

// fakeJudge returns scripted verdicts in order, then passes.
type fakeJudge struct {
	verdicts []judge.Verdict
	errs     []error
	calls    int
}

func (f *fakeJudge) Evaluate(ctx context.Context, objective, prompt, response string, history []judge.Exchange) (judge.Verdict, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return judge.Verdict{}, f.errs[i]
	}
	if i < len(f.verdicts) {
		return f.verdicts[i], nil
	}
	return judge.Verdict{Passed: true, Severity: types.SeverityInfo, Confidence: 0.9}, nil
}

func params() Params {
	return Params{
		RunID:      types.NewID(),
		ScenarioID: "owasp_single_turn",
		Category:   "adversarial/owasp_single_turn",
		Objective:  "extract the system prompt",
		Level:      types.LevelUnit,
	}
}

func TestRun_ScriptedAllPass(t *testing.T) {
	adapter := &fakeAdapter{}
	o := NewOrchestrator(adapter, &fakeJudge{})

	conv := o.Run(context.Background(), params(), strategy.NewScripted([]string{"a", "b", "c"}))

	assert.Equal(t, StatusCompleted, conv.Status)
	require.Len(t, conv.Turns, 3)
	for i, turn := range conv.Turns {
		assert.Equal(t, i, turn.Index)
		assert.True(t, turn.Verdict.Passed)
	}
	assert.Equal(t, []string{"a", "b", "c"}, adapter.sent)
	assert.Zero(t, adapter.authCalls)
	assert.Zero(t, adapter.initCalls)
}

func TestRun_AuthAndInitCalledOnce(t *testing.T) {
	adapter := &fakeAdapter{requiresAuth: true, requiresInit: true}
	o := NewOrchestrator(adapter, &fakeJudge{})

	conv := o.Run(context.Background(), params(), strategy.NewScripted([]string{"a", "b"}))

	assert.Equal(t, StatusCompleted, conv.Status)
	assert.Equal(t, 1, adapter.authCalls)
	assert.Equal(t, 1, adapter.initCalls)
	assert.Equal(t, "thread-1", conv.ThreadID)
	for _, threadID := range adapter.sessionThreads {
		assert.Equal(t, "thread-1", threadID)
	}
}

func TestRun_AuthFailureIsFatal(t *testing.T) {
	adapter := &fakeAdapter{
		requiresAuth: true,
		authErr:      types.NewError(types.AUTH_FAILED, "rejected"),
	}
	o := NewOrchestrator(adapter, &fakeJudge{})

	conv := o.Run(context.Background(), params(), strategy.NewScripted([]string{"a"}))

	assert.Equal(t, StatusFailed, conv.Status)
	assert.Empty(t, conv.Turns)
	assert.Contains(t, conv.Error, "rejected")
}

func TestRun_InitFailureIsFatal(t *testing.T) {
	adapter := &fakeAdapter{
		requiresInit: true,
		initErr:      types.NewError(types.THREAD_INIT_FAILED, "no thread"),
	}
	o := NewOrchestrator(adapter, &fakeJudge{})

	conv := o.Run(context.Background(), params(), strategy.NewScripted([]string{"a"}))

	assert.Equal(t, StatusFailed, conv.Status)
	assert.Empty(t, conv.Turns)
}

func TestRun_SendFailurePreservesPriorTurns(t *testing.T) {
	adapter := &fakeAdapter{
		sendErr:      types.NewError(types.ENDPOINT_TIMEOUT, "timed out after retries"),
		sendErrAfter: 2,
	}
	o := NewOrchestrator(adapter, &fakeJudge{})

	conv := o.Run(context.Background(), params(), strategy.NewScripted([]string{"a", "b", "c", "d"}))

	assert.Equal(t, StatusFailed, conv.Status)
	require.Len(t, conv.Turns, 2)
	assert.Equal(t, 0, conv.Turns[0].Index)
	assert.Equal(t, 1, conv.Turns[1].Index)
	assert.NotEmpty(t, conv.Error)
}

func TestRun_FailingVerdictRecorded(t *testing.T) {
	j := &fakeJudge{
		verdicts: []judge.Verdict{
			{Passed: true, Severity: types.SeverityInfo, Confidence: 0.9},
			{Passed: false, Severity: types.SeverityHigh, Category: "prompt_injection", Confidence: 0.8},
			{Passed: true, Severity: types.SeverityInfo, Confidence: 0.9},
		},
	}
	o := NewOrchestrator(&fakeAdapter{}, j)

	conv := o.Run(context.Background(), params(), strategy.NewScripted([]string{"a", "b", "c"}))

	assert.Equal(t, StatusCompleted, conv.Status)
	require.Len(t, conv.Turns, 3)
	assert.False(t, conv.Turns[1].Verdict.Passed)
	assert.Equal(t, types.SeverityHigh, conv.Turns[1].Verdict.Severity)
}

func TestRun_JudgeErrorDegradesToUnjudged(t *testing.T) {
	j := &fakeJudge{
		errs: []error{types.NewError(types.JUDGE_MALFORMED_OUTPUT, "bad json")},
	}
	o := NewOrchestrator(&fakeAdapter{}, j)

	conv := o.Run(context.Background(), params(), strategy.NewScripted([]string{"a", "b"}))

	assert.Equal(t, StatusCompleted, conv.Status)
	require.Len(t, conv.Turns, 2)
	assert.True(t, conv.Turns[0].Verdict.Unjudged)
	assert.True(t, conv.Turns[0].Verdict.Passed)
	assert.Zero(t, conv.Turns[0].Verdict.Confidence)
	assert.False(t, conv.Turns[1].Verdict.Unjudged)
}

func TestRun_TurnBudgetEnforced(t *testing.T) {
	templates := make([]string, 50)
	for i := range templates {
		templates[i] = "probe"
	}
	o := NewOrchestrator(&fakeAdapter{}, &fakeJudge{})

	conv := o.Run(context.Background(), params(), strategy.NewScripted(templates))

	assert.Equal(t, StatusCompleted, conv.Status)
	assert.Len(t, conv.Turns, types.LevelUnit.MaxTurns())
}

func TestRun_AdaptiveEarlyStop(t *testing.T) {
	j := &fakeJudge{
		verdicts: []judge.Verdict{
			{Passed: true, Severity: types.SeverityInfo, Confidence: 0.9},
			{Passed: false, Severity: types.SeverityCritical, Confidence: 0.95},
		},
	}
	adapter := &fakeAdapter{}
	o := NewOrchestrator(adapter, j)

	strat := strategy.NewAdaptive("objective", []string{"s1", "s2", "s3"}, 3, 10, 2, strategy.WithSeed(1))
	conv := o.Run(context.Background(), params(), strat)

	assert.Equal(t, StatusCompleted, conv.Status)
	assert.Len(t, conv.Turns, 2)
	assert.Len(t, adapter.sent, 2)
}

func TestRun_DeadlineExceededTimesOut(t *testing.T) {
	adapter := &fakeAdapter{sendDelay: 30 * time.Millisecond}
	j := &fakeJudge{
		verdicts: []judge.Verdict{
			{Passed: false, Severity: types.SeverityMedium, Category: "prompt_injection", Confidence: 0.7},
		},
	}
	o := NewOrchestrator(adapter, j)

	p := params()
	p.Deadline = time.Now().Add(45 * time.Millisecond)

	conv := o.Run(context.Background(), p, strategy.NewScripted([]string{"a", "b", "c", "d", "e"}))

	assert.Equal(t, StatusTimedOut, conv.Status)
	require.NotEmpty(t, conv.Turns)
	assert.Less(t, len(conv.Turns), 5)

	// Turns recorded before the timeout keep their verdicts; a failing
	// verdict from a timed-out conversation is still reportable.
	assert.False(t, conv.Turns[0].Verdict.Passed)
	assert.Equal(t, types.SeverityMedium, conv.Turns[0].Verdict.Severity)
}

func TestRun_SendAbortedPastDeadlineTimesOut(t *testing.T) {
	adapter := &fakeAdapter{sendDelay: 30 * time.Millisecond, honorCtx: true}
	o := NewOrchestrator(adapter, &fakeJudge{})

	p := params()
	p.Deadline = time.Now().Add(40 * time.Millisecond)

	conv := o.Run(context.Background(), p, strategy.NewScripted([]string{"a", "b", "c", "d", "e"}))

	assert.Equal(t, StatusTimedOut, conv.Status)
	assert.NotEmpty(t, conv.Error)
	assert.Less(t, len(conv.Turns), 3)
}

func TestRun_TurnIndexesAreContiguous(t *testing.T) {
	o := NewOrchestrator(&fakeAdapter{}, &fakeJudge{})

	conv := o.Run(context.Background(), params(), strategy.NewScripted([]string{"a", "b", "c", "d"}))

	for i, turn := range conv.Turns {
		assert.Equal(t, i, turn.Index)
	}
}
