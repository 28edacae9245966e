package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/ttgen/pkg/scheduler"
)

var multigenOpts batchOptions

var multigenCmd = &cobra.Command{
	Use:   "multigen SPEC",
	Short: "Generate every output described by SPEC",
	Long: `Generate all output files listed in the batch spec SPEC (JSON, YAML or
HCL). Jobs whose output is newer than both its template and data are
skipped unless --force is given.

Each job is reported on its own line as it completes. A failing job does
not stop the others.

Examples:
  ttgen multigen ttgen.json
  ttgen multigen ttgen.json -j 4 --only 'docs/**'
  ttgen multigen ttgen.hcl --force --strict`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatchCommand(cmd, args[0], &multigenOpts, scheduler.Generate)
	},
}

func init() {
	rootCmd.AddCommand(multigenCmd)
	multigenOpts.register(multigenCmd, true, true)
}
