package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sofmeright/forgeline/src/output"
	"github.com/sofmeright/forgeline/src/step"
	"github.com/sofmeright/forgeline/src/workflow"

	// Register the builtin steps.
	_ "github.com/sofmeright/forgeline/src/steps"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the configured build pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := step.NewRegistry()
		wf := workflow.New(cfg, reg)

		_, err := wf.Run(cmd.Context())

		p := output.NewPrinter()
		p.Report(wf.Build)
		p.Summary(wf.Build, err)
		return err
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
