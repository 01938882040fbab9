package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/aiandme-io/humanbound-engine/internal/config"
	"github.com/aiandme-io/humanbound-engine/internal/finding"
	"github.com/aiandme-io/humanbound-engine/internal/integration"
	"github.com/aiandme-io/humanbound-engine/internal/judge"
	"github.com/aiandme-io/humanbound-engine/internal/observability"
	"github.com/aiandme-io/humanbound-engine/internal/posture"
	"github.com/aiandme-io/humanbound-engine/internal/run"
	"github.com/aiandme-io/humanbound-engine/internal/scenario"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

var runFlags struct {
	integration  string
	scenarios    string
	level        string
	failOn       string
	baseline     string
	saveBaseline string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute attack scenarios against a target endpoint",
	Long: `Run loads attack scenarios, drives them against the target endpoint
described by the integration config, and reports findings and the
resulting posture score.

The integration config is an inline JSON object or a path to a JSON
file describing the endpoint, in the same shape used by the pytest
plugin's --endpoint flag.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.integration, "integration", "i", "", "Integration config: inline JSON or file path (required)")
	runCmd.Flags().StringVarP(&runFlags.scenarios, "scenarios", "s", "", "Scenario YAML file or directory (required)")
	runCmd.Flags().StringVarP(&runFlags.level, "level", "l", "unit", "Testing level: unit, system, or acceptance")
	runCmd.Flags().StringVar(&runFlags.failOn, "fail-on", "high", "Severity threshold for a non-zero exit code")
	runCmd.Flags().StringVar(&runFlags.baseline, "baseline", "", "Baseline file to compare findings against")
	runCmd.Flags().StringVar(&runFlags.saveBaseline, "save-baseline", "", "Write a baseline file after the run")

	_ = runCmd.MarkFlagRequired("integration")
	_ = runCmd.MarkFlagRequired("scenarios")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(os.Stderr, cfg.Logging)

	tp, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() { _ = observability.ShutdownTracing(context.Background(), tp) }()

	level := types.TestingLevel(runFlags.level)
	if !level.IsValid() {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "unknown testing level: "+runFlags.level)
	}
	failOn, err := types.ParseSeverity(runFlags.failOn)
	if err != nil {
		return err
	}

	intCfg, err := integration.ParseConfigString(runFlags.integration)
	if err != nil {
		return err
	}

	adapter, err := integration.NewHTTPAdapter(intCfg,
		integration.WithLogger(logger),
		integration.WithRetryPolicy(integration.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
			Multiplier:     2,
		}),
		integration.WithRateLimit(cfg.Retry.RatePerSecond),
		integration.WithCallTimeout(cfg.Core.Timeout),
	)
	if err != nil {
		return err
	}

	model, err := judge.NewOpenAIModel(cfg.Judge.Model, cfg.Judge.APIKey, cfg.Judge.BaseURL)
	if err != nil {
		return err
	}
	j := judge.NewLLMJudge(model,
		judge.WithLogger(logger),
		judge.WithTemperature(cfg.Judge.Temperature))

	scenarios, err := loadScenarios(runFlags.scenarios)
	if err != nil {
		return err
	}

	runner := run.NewRunner(adapter, j,
		run.WithParallelLimit(cfg.Core.ParallelLimit),
		run.WithWeights(weightsFromConfig(cfg.Scoring)),
		run.WithAdaptiveDefaults(cfg.Adaptive),
		run.WithParaphraseModel(model),
		run.WithLogger(logger),
		run.WithTracer(tp.Tracer("humanbound")))

	h, err := runner.StartRun(ctx, level, scenarios)
	if err != nil {
		return err
	}

	runErr := h.Wait(ctx)
	if runErr != nil && ctx.Err() != nil {
		// Interrupted: the runner cancels in-flight conversations and
		// still flushes everything recorded so far. Wait for that flush.
		runErr = h.Wait(context.Background())
	}

	findings := h.Findings()
	score := h.Posture()

	if err := persistResults(ctx, cfg, findings, score); err != nil {
		logger.Warn("failed to persist run results", "error", err)
	}

	printReport(cmd, h, findings, score)

	if runFlags.baseline != "" {
		if err := compareBaseline(cmd, runFlags.baseline, score, findings); err != nil {
			return err
		}
	}
	if runFlags.saveBaseline != "" {
		if err := posture.SaveBaseline(runFlags.saveBaseline, posture.NewBaseline(score, findings)); err != nil {
			return err
		}
		cmd.Printf("Baseline saved to %s\n", runFlags.saveBaseline)
	}

	exitCode = run.ExitCode(h.Status(), findings, failOn)

	if runErr != nil {
		return runErr
	}
	return nil
}

func loadScenarios(path string) ([]*scenario.AttackScenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, types.WrapError(types.SCENARIO_LOAD_FAILED, "cannot read scenario path: "+path, err)
	}
	if info.IsDir() {
		return scenario.LoadDir(path)
	}
	return scenario.LoadFile(path)
}

func weightsFromConfig(cfg config.ScoringConfig) posture.Weights {
	w := posture.DefaultWeights()
	if cfg.CriticalWeight > 0 {
		w.Critical = cfg.CriticalWeight
	}
	if cfg.HighWeight > 0 {
		w.High = cfg.HighWeight
	}
	if cfg.MediumWeight > 0 {
		w.Medium = cfg.MediumWeight
	}
	if cfg.LowWeight > 0 {
		w.Low = cfg.LowWeight
	}
	if cfg.InfoWeight > 0 {
		w.Info = cfg.InfoWeight
	}
	if cfg.CoverageBonus > 0 {
		w.CoverageBonus = cfg.CoverageBonus
	}
	if cfg.ResilienceBonus > 0 {
		w.ResilienceBonus = cfg.ResilienceBonus
	}
	return w
}

// persistResults saves findings and the posture score to the SQLite store
// so later guardrails invocations can reference the run by id.
func persistResults(ctx context.Context, cfg *config.Config, findings []*finding.Finding, score posture.Score) error {
	path := storePath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// Findings and posture history share one database file; open it once
	// and hand the same handle to both stores.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return types.WrapError(types.STORE_OPEN_FAILED, "failed to open results store", err)
	}
	defer db.Close()

	store, err := finding.NewStoreWithDB(db)
	if err != nil {
		return err
	}
	if err := store.SaveAll(ctx, findings); err != nil {
		return err
	}

	history, err := posture.NewHistoryWithDB(db)
	if err != nil {
		return err
	}
	return history.Append(ctx, score)
}

func storePath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Store.Path) {
		return cfg.Store.Path
	}
	return filepath.Join(cfg.Core.DataDir, cfg.Store.Path)
}

func printReport(cmd *cobra.Command, h *run.Handle, findings []*finding.Finding, score posture.Score) {
	cmd.Printf("Run %s finished: %s\n", h.RunID(), h.Status())

	unjudged := 0
	for _, conv := range h.Conversations() {
		for _, turn := range conv.Turns {
			if turn.Verdict.Unjudged {
				unjudged++
			}
		}
	}
	if unjudged > 0 {
		cmd.Printf("Warning: %d turns could not be judged and are excluded from scoring\n", unjudged)
	}

	cmd.Printf("Posture score: %.1f/100\n\n", score.Value)

	if len(findings) == 0 {
		cmd.Println("No findings.")
		return
	}

	cmd.Printf("Findings (%d):\n", len(findings))
	for _, f := range findings {
		cmd.Printf("  [%s] %s x%d\n", f.Severity, f.Category, f.OccurrenceCount)
		cmd.Printf("      %s\n", f.Rationale)
	}
}

func compareBaseline(cmd *cobra.Command, path string, score posture.Score, findings []*finding.Finding) error {
	baseline, err := posture.LoadBaseline(path)
	if err != nil {
		return err
	}

	cmp := posture.Compare(baseline, score, findings)

	cmd.Printf("\nBaseline %s: score delta %+.1f\n", cmp.BaselineRunID, cmp.ScoreDelta)
	for _, r := range cmp.Regressions {
		was := r.WasSeverity
		if was == "" {
			was = "new"
		}
		cmd.Printf("  REGRESSION [%s] %s (was %s)\n", r.Severity, r.Category, was)
	}
	for _, sig := range cmp.Resolved {
		cmd.Printf("  resolved %s\n", sig)
	}

	if cmp.Regressed() {
		exitCode = run.ExitFindings
	}
	return nil
}
