package main

import (
	"github.com/spf13/cobra"

	"github.com/aiandme-io/humanbound-engine/internal/observability"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the engine version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("humanbound %s\n", observability.Version)
	},
}
