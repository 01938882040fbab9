package main

import (
	"github.com/spf13/cobra"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Work with attack scenario files",
}

var scenariosValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a scenario file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios, err := loadScenarios(args[0])
		if err != nil {
			return err
		}

		adaptive := 0
		for _, sc := range scenarios {
			if sc.IsAdaptive() {
				adaptive++
			}
		}

		cmd.Printf("%d scenarios valid (%d scripted, %d adaptive)\n",
			len(scenarios), len(scenarios)-adaptive, adaptive)
		return nil
	},
}

func init() {
	scenariosCmd.AddCommand(scenariosValidateCmd)
}
