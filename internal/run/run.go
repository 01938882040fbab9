// Package run fans scenarios out over a bounded worker pool and owns the
// lifecycle of a test run: conversations, findings, posture, guardrails.
package run

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/aiandme-io/humanbound-engine/internal/config"
	"github.com/aiandme-io/humanbound-engine/internal/conversation"
	"github.com/aiandme-io/humanbound-engine/internal/finding"
	"github.com/aiandme-io/humanbound-engine/internal/integration"
	"github.com/aiandme-io/humanbound-engine/internal/judge"
	"github.com/aiandme-io/humanbound-engine/internal/posture"
	"github.com/aiandme-io/humanbound-engine/internal/scenario"
	"github.com/aiandme-io/humanbound-engine/internal/strategy"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

const defaultParallelLimit = 10

// Runner executes scenario batches against one target endpoint.
type Runner struct {
	adapter    integration.Adapter
	judge      judge.Judge
	weights    posture.Weights
	adaptive   config.AdaptiveConfig
	parallel   int
	paraphrase llms.Model
	logger     *slog.Logger
	tracer     trace.Tracer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithParallelLimit bounds the number of conversations in flight.
func WithParallelLimit(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.parallel = n
		}
	}
}

// WithWeights overrides the posture scoring weights.
func WithWeights(w posture.Weights) RunnerOption {
	return func(r *Runner) {
		r.weights = w
	}
}

// WithAdaptiveDefaults sets fallback search parameters for adaptive
// scenarios that do not pin their own.
func WithAdaptiveDefaults(cfg config.AdaptiveConfig) RunnerOption {
	return func(r *Runner) {
		r.adaptive = cfg
	}
}

// WithParaphraseModel enables the LLM paraphrase mutator for adaptive
// scenarios.
func WithParaphraseModel(model llms.Model) RunnerOption {
	return func(r *Runner) {
		r.paraphrase = model
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTracer sets the runner tracer.
func WithTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// NewRunner creates a runner over an adapter and a judge.
func NewRunner(adapter integration.Adapter, j judge.Judge, opts ...RunnerOption) *Runner {
	r := &Runner{
		adapter:  adapter,
		judge:    j,
		weights:  posture.DefaultWeights(),
		adaptive: config.DefaultConfig().Adaptive,
		parallel: defaultParallelLimit,
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer("humanbound.run"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// StartRun launches the scenarios asynchronously and returns a handle for
// observing the run. Cancellation through the handle flushes partial
// results: findings and posture reflect every conversation finished before
// the cancel.
func (r *Runner) StartRun(ctx context.Context, level types.TestingLevel, scenarios []*scenario.AttackScenario) (*Handle, error) {
	if len(scenarios) == 0 {
		return nil, types.NewError(types.SCENARIO_INVALID, "run requires at least one scenario")
	}
	if !level.IsValid() {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED, "unknown testing level: "+level.String())
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := newHandle(types.NewID(), level, cancel)

	go r.execute(runCtx, h, level, scenarios)

	return h, nil
}

type scenarioResult struct {
	conv     *conversation.Conversation
	resisted bool
}

func (r *Runner) execute(ctx context.Context, h *Handle, level types.TestingLevel, scenarios []*scenario.AttackScenario) {
	ctx, span := r.tracer.Start(ctx, "run.execute",
		trace.WithAttributes(
			attribute.String("run_id", h.RunID().String()),
			attribute.String("level", level.String()),
			attribute.Int("scenarios", len(scenarios)),
		))
	defer span.End()

	h.setStatus(StatusRunning)
	started := time.Now()

	agg := finding.NewAggregator(h.RunID())
	orch := conversation.NewOrchestrator(r.adapter, r.judge,
		conversation.WithLogger(r.logger),
		conversation.WithTracer(r.tracer))

	results := make([]scenarioResult, len(scenarios))

	sem := make(chan struct{}, r.parallel)
	var wg sync.WaitGroup

	for i, sc := range scenarios {
		sem <- struct{}{}
		if ctx.Err() != nil {
			<-sem
			break
		}
		wg.Add(1)

		go func(i int, sc *scenario.AttackScenario) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = r.runScenario(ctx, orch, agg, h.RunID(), level, sc)
		}(i, sc)
	}

	wg.Wait()

	var convs []*conversation.Conversation
	resisted := 0
	failed := 0
	for _, res := range results {
		if res.conv == nil {
			continue
		}
		convs = append(convs, res.conv)
		if res.resisted {
			resisted++
		}
		if res.conv.Status == conversation.StatusFailed {
			failed++
		}
	}

	findings := agg.Findings()
	coverage := agg.CoverageByCategory()
	score := posture.NewScorer(r.weights).Compute(h.RunID(), level, findings, coverage, resisted)

	h.setResults(convs, findings, coverage, score)

	switch {
	case ctx.Err() != nil:
		h.fail(types.NewError(types.RUN_CANCELLED, "run cancelled before all scenarios finished"))
	case len(convs) > 0 && failed*2 > len(convs):
		h.fail(types.NewError(types.RUN_SYSTEMIC_FAILED,
			"majority of conversations failed; check endpoint configuration and credentials"))
	default:
		h.complete()
	}

	r.logger.Info("run finished",
		"run_id", h.RunID().String(),
		"status", h.Status().String(),
		"conversations", len(convs),
		"findings", len(findings),
		"posture", score.Value,
		"duration", time.Since(started))
}

// runScenario executes one scenario to completion and feeds its turns into
// the aggregator. Attempted categories count toward coverage even when the
// conversation fails.
func (r *Runner) runScenario(ctx context.Context, orch *conversation.Orchestrator, agg *finding.Aggregator, runID types.ID, level types.TestingLevel, sc *scenario.AttackScenario) scenarioResult {
	agg.RecordAttempt(sc.Category)

	strat := r.buildStrategy(sc)

	conv := orch.Run(ctx, conversation.Params{
		RunID:      runID,
		ScenarioID: sc.ID,
		Category:   sc.Category,
		Objective:  sc.Objective,
		Level:      level,
	}, strat)

	violations := 0
	for _, turn := range conv.Turns {
		agg.Record(sc.Category, turn.Prompt, turn.Response, turn.Verdict)
		if !turn.Verdict.Passed && !turn.Verdict.Unjudged {
			violations++
		}
	}

	res := scenarioResult{conv: conv}

	if adaptive, ok := strat.(*strategy.Adaptive); ok {
		res.resisted = adaptive.ExhaustedBudget() &&
			violations == 0 &&
			conv.Status == conversation.StatusCompleted
	}

	return res
}

// buildStrategy binds a scenario to its prompt source: scripted templates
// or evolutionary search with the configured mutation operators.
func (r *Runner) buildStrategy(sc *scenario.AttackScenario) strategy.Strategy {
	if !sc.IsAdaptive() {
		return strategy.NewScripted(sc.Templates)
	}

	spec := sc.Adaptive
	pop := spec.PopulationSize
	if pop <= 0 {
		pop = r.adaptive.PopulationSize
	}
	gens := spec.MaxGenerations
	if gens <= 0 {
		gens = r.adaptive.MaxGenerations
	}
	topK := spec.TopK
	if topK <= 0 {
		topK = r.adaptive.TopK
	}

	opts := []strategy.AdaptiveOption{
		strategy.WithMutators(r.mutators(spec.Operators)...),
		strategy.WithStrategyLogger(r.logger),
	}
	if r.adaptive.SuccessThreshold > 0 {
		opts = append(opts, strategy.WithSuccessThreshold(r.adaptive.SuccessThreshold))
	}

	return strategy.NewAdaptive(sc.Objective, spec.Seeds, pop, gens, topK, opts...)
}

// mutators resolves the operator names a scenario requests, defaulting to
// every available operator when none are named.
func (r *Runner) mutators(operators []string) []strategy.Mutator {
	available := []strategy.Mutator{
		strategy.InjectionSplice{},
		strategy.ContextExtend{},
	}
	if r.paraphrase != nil {
		available = append(available, strategy.NewLLMParaphraser(r.paraphrase))
	}

	if len(operators) == 0 {
		return available
	}

	wanted := make(map[string]bool, len(operators))
	for _, name := range operators {
		wanted[name] = true
	}

	var out []strategy.Mutator
	for _, m := range available {
		if wanted[m.Name()] {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return available
	}
	return out
}
