package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/ttgen/pkg/scheduler"
)

var reportOpts batchOptions

// reportModes maps report sub-modes onto scheduler actions.
var reportModes = map[string]scheduler.Action{
	"clean":    scheduler.ReportDelete,
	"multigen": scheduler.ReportGenerate,
	"count":    scheduler.Count,
}

var reportCmd = &cobra.Command{
	Use:     "report {clean|multigen|count} SPEC",
	Aliases: []string{"dry-run"},
	Short:   "Report what a batch command would do",
	Long: `Analyze SPEC and report, without touching any file, what the named
command would do:

  multigen  which jobs would be built or skipped, and why
  clean     which outputs would be removed
  count     how many jobs SPEC declares

Examples:
  ttgen report multigen ttgen.json
  ttgen dry-run clean ttgen.json --format jsonl
  ttgen report count ttgen.yaml`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"clean", "multigen", "count"},
	RunE:      runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportOpts.register(reportCmd, true, false)
}

func runReport(cmd *cobra.Command, args []string) error {
	action, ok := reportModes[args[0]]
	if !ok {
		return exitError(foundry.ExitInvalidArgument, "Invalid report mode",
			fmt.Errorf("unknown mode %q (expected clean, multigen or count)", args[0]))
	}
	return runBatchCommand(cmd, args[1], &reportOpts, action)
}
