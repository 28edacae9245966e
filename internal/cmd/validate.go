package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ttgen/internal/observability"
	"github.com/3leaps/ttgen/pkg/builderr"
)

var validateOnly []string

var validateCmd = &cobra.Command{
	Use:   "validate SPEC",
	Short: "Check that SPEC parses and every job's inputs exist",
	Long: `Load the batch spec SPEC and check every job's data and template files.
All missing files are reported at once. Outputs are not checked.

Examples:
  ttgen validate ttgen.json
  ttgen validate ttgen.hcl --only 'docs/**'`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringArrayVar(&validateOnly, "only", nil, "Only check jobs whose name or output matches GLOB (repeatable)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	jobs, err := loadJobs(args[0], validateOnly)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	invalid := 0
	for _, j := range jobs {
		err := j.Validate()
		if err == nil {
			continue
		}
		invalid++

		var missing *builderr.MissingFilesError
		if errors.As(err, &missing) {
			for _, p := range missing.Paths {
				_, _ = fmt.Fprintf(out, "%s: missing %s file: %s\n", j, p.Role, p.Path)
			}
			continue
		}
		_, _ = fmt.Fprintf(out, "%s: %v\n", j, err)
	}

	observability.CLILogger.Debug("Validated batch spec",
		zap.String("path", args[0]),
		zap.Int("jobs", len(jobs)),
		zap.Int("invalid", invalid))

	if invalid > 0 {
		return exitError(foundry.ExitFileNotFound,
			fmt.Sprintf("%d of %d jobs have missing inputs", invalid, len(jobs)), nil)
	}
	_, _ = fmt.Fprintf(out, "ok: %d jobs\n", len(jobs))
	return nil
}
