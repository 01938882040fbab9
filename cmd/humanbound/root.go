package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aiandme-io/humanbound-engine/internal/config"
)

var (
	configFile string

	// exitCode is resolved by subcommands, picked up by main after
	// cobra returns. Findings above the fail-on threshold exit non-zero
	// even when the command itself succeeds.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "humanbound",
	Short: "Humanbound - Adaptive adversarial testing for conversational AI",
	Long: `Humanbound drives multi-turn adversarial conversations against a
conversational AI endpoint, judges the responses, aggregates findings,
scores security posture, and synthesizes guardrail rules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (YAML)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(guardrailsCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadEngineConfig loads the engine config, falling back to defaults when
// no config file is given or present.
func loadEngineConfig() (*config.Config, error) {
	loader := config.NewConfigLoader(config.NewValidator())

	if configFile != "" {
		return loader.Load(configFile)
	}

	path := filepath.Join(config.DefaultConfig().Core.HomeDir, "config.yaml")
	return loader.LoadWithDefaults(path)
}
