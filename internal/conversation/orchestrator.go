package conversation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/aiandme-io/humanbound-engine/internal/integration"
	"github.com/aiandme-io/humanbound-engine/internal/judge"
	"github.com/aiandme-io/humanbound-engine/internal/strategy"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Params binds one scenario execution to a run. Deadline, when set,
// overrides the level's time budget.
type Params struct {
	RunID      types.ID
	ScenarioID string
	Category   string
	Objective  string
	Level      types.TestingLevel
	Deadline   time.Time
}

// Orchestrator drives conversations through their state machine. One
// instance is safe to share across workers; all per-conversation state
// lives in the Conversation it returns.
type Orchestrator struct {
	adapter integration.Adapter
	judge   judge.Judge
	logger  *slog.Logger
	tracer  trace.Tracer
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTracer sets the orchestrator tracer.
func WithTracer(tracer trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// NewOrchestrator creates an orchestrator over an adapter and a judge.
func NewOrchestrator(adapter integration.Adapter, j judge.Judge, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		adapter: adapter,
		judge:   j,
		logger:  slog.Default(),
		tracer:  noop.NewTracerProvider().Tracer("humanbound.conversation"),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run executes one conversation to a terminal state. The returned
// Conversation always carries every turn recorded before any failure;
// partial results are reportable.
func (o *Orchestrator) Run(ctx context.Context, params Params, strat strategy.Strategy) *Conversation {
	ctx, span := o.tracer.Start(ctx, "conversation.run",
		trace.WithAttributes(
			attribute.String("scenario", params.ScenarioID),
			attribute.String("category", params.Category),
			attribute.String("level", params.Level.String()),
		))
	defer span.End()

	conv := &Conversation{
		ID:         types.NewID(),
		RunID:      params.RunID,
		ScenarioID: params.ScenarioID,
		Category:   params.Category,
		Status:     StatusInit,
		Level:      params.Level,
		StartedAt:  time.Now(),
	}

	deadline := conv.StartedAt.Add(params.Level.MaxDuration())
	if !params.Deadline.IsZero() {
		deadline = params.Deadline
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	session, ok := o.setup(ctx, conv)
	if !ok {
		conv.EndedAt = time.Now()
		return conv
	}

	o.loop(ctx, conv, params, strat, session, deadline)
	conv.EndedAt = time.Now()

	o.logger.Info("conversation finished",
		"scenario", params.ScenarioID,
		"status", conv.Status.String(),
		"turns", len(conv.Turns))

	return conv
}

// setup performs the optional auth and thread-init calls. Failures here are
// fatal and are not retried: credentials are assumed stable within a run.
func (o *Orchestrator) setup(ctx context.Context, conv *Conversation) (integration.Session, bool) {
	var session integration.Session

	if o.adapter.RequiresAuth() {
		_ = conv.transition(StatusAuthenticating)

		token, err := o.adapter.Authenticate(ctx)
		if err != nil {
			o.fail(conv, err)
			return session, false
		}
		session.AuthToken = token
	}

	if o.adapter.RequiresThreadInit() {
		_ = conv.transition(StatusThreadInit)

		threadID, err := o.adapter.InitThread(ctx, session.AuthToken)
		if err != nil {
			o.fail(conv, err)
			return session, false
		}
		session.ThreadID = threadID
		conv.ThreadID = threadID
	}

	_ = conv.transition(StatusRunning)
	return session, true
}

// loop runs turns until the strategy stops, a budget is hit, or a fatal
// error occurs.
func (o *Orchestrator) loop(ctx context.Context, conv *Conversation, params Params, strat strategy.Strategy, session integration.Session, deadline time.Time) {
	maxTurns := params.Level.MaxTurns()

	for {
		if len(conv.Turns) >= maxTurns {
			_ = conv.transition(StatusCompleted)
			return
		}
		if time.Now().After(deadline) {
			_ = conv.transition(StatusTimedOut)
			return
		}

		history := conv.history()
		prompt, ok, err := strat.NextPrompt(ctx, history)
		if err != nil {
			o.fail(conv, err)
			return
		}
		if !ok {
			_ = conv.transition(StatusCompleted)
			return
		}

		turnStart := time.Now()
		reply, err := o.adapter.SendMessage(ctx, session, prompt, toHistoryEntries(history))
		if err != nil {
			if time.Now().After(deadline) {
				conv.Error = err.Error()
				_ = conv.transition(StatusTimedOut)
				return
			}
			o.fail(conv, err)
			return
		}

		verdict := o.evaluate(ctx, params.Objective, prompt, reply.Text, history)

		conv.Turns = append(conv.Turns, Turn{
			Index:     len(conv.Turns),
			Prompt:    prompt,
			Response:  reply.Text,
			Verdict:   verdict,
			Timestamp: turnStart,
			Latency:   reply.Latency,
		})

		strat.OnVerdict(verdict)
	}
}

// evaluate judges one turn, degrading to an unjudged verdict if the judge
// itself fails. Judge failures never abort the conversation.
func (o *Orchestrator) evaluate(ctx context.Context, objective, prompt, response string, history []judge.Exchange) judge.Verdict {
	verdict, err := o.judge.Evaluate(ctx, objective, prompt, response, history)
	if err != nil {
		o.logger.Warn("judge failed, recording unjudged turn", "error", err)
		return judge.Unjudged()
	}
	return verdict
}

func (o *Orchestrator) fail(conv *Conversation, err error) {
	conv.Error = err.Error()
	_ = conv.transition(StatusFailed)
	o.logger.Warn("conversation failed",
		"scenario", conv.ScenarioID,
		"status", conv.Status.String(),
		"error", err)
}

func toHistoryEntries(history []judge.Exchange) []integration.HistoryEntry {
	out := make([]integration.HistoryEntry, 0, len(history)*2)
	for _, ex := range history {
		out = append(out,
			integration.HistoryEntry{Role: "user", Content: ex.Prompt},
			integration.HistoryEntry{Role: "assistant", Content: ex.Response},
		)
	}
	return out
}
