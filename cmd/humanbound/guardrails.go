package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/aiandme-io/humanbound-engine/internal/finding"
	"github.com/aiandme-io/humanbound-engine/internal/guardrail"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

var guardrailFlags struct {
	runID  string
	vendor string
	output string
}

var guardrailsCmd = &cobra.Command{
	Use:   "guardrails",
	Short: "Synthesize vendor guardrail rules from a run's findings",
	Long: `Guardrails loads the findings of a previous run from the local store
and synthesizes protection rules for the chosen vendor. Supported
vendors: ` + vendorList() + `.`,
	RunE: runGuardrails,
}

func init() {
	guardrailsCmd.Flags().StringVarP(&guardrailFlags.runID, "run", "r", "", "Run id to synthesize rules from (required)")
	guardrailsCmd.Flags().StringVar(&guardrailFlags.vendor, "vendor", string(guardrail.VendorHumanbound), "Target guardrail vendor")
	guardrailsCmd.Flags().StringVarP(&guardrailFlags.output, "output", "o", "", "Output file, .json or .yaml (required)")

	_ = guardrailsCmd.MarkFlagRequired("run")
	_ = guardrailsCmd.MarkFlagRequired("output")
}

func runGuardrails(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}

	runID, err := types.ParseID(guardrailFlags.runID)
	if err != nil {
		return err
	}

	store, err := finding.OpenStore(storePath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	findings, err := store.ListByRun(ctx, runID)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		cmd.Printf("No findings recorded for run %s; nothing to synthesize.\n", runID)
		return nil
	}

	set, err := guardrail.NewSynthesizer().Synthesize(runID, guardrail.Vendor(guardrailFlags.vendor), findings)
	if err != nil {
		return err
	}

	if err := guardrail.Export(guardrailFlags.output, set); err != nil {
		return err
	}

	cmd.Printf("Wrote %d %s rules to %s\n", len(set.Rules), set.Vendor, guardrailFlags.output)
	return nil
}

func vendorList() string {
	names := make([]string, 0, len(guardrail.Vendors()))
	for _, v := range guardrail.Vendors() {
		names = append(names, string(v))
	}
	return strings.Join(names, ", ")
}
