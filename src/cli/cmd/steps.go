package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/forgeline/src/step"

	_ "github.com/sofmeright/forgeline/src/steps"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the available build steps",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := step.NewRegistry()
		for _, key := range reg.Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stepsCmd)
}
