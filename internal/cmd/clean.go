package cmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/ttgen/pkg/scheduler"
)

var cleanOpts batchOptions

var cleanCmd = &cobra.Command{
	Use:   "clean SPEC",
	Short: "Delete every output file referenced by SPEC",
	Long: `Delete all output files listed in the batch spec SPEC. Outputs that do
not exist are skipped; a failed removal does not stop the others.

Examples:
  ttgen clean ttgen.json
  ttgen clean ttgen.yaml --only 'build/*.rst'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatchCommand(cmd, args[0], &cleanOpts, scheduler.Delete)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanOpts.register(cleanCmd, false, true)
}
