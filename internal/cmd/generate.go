package cmd

import (
	"errors"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ttgen/internal/observability"
	"github.com/3leaps/ttgen/pkg/builderr"
	"github.com/3leaps/ttgen/pkg/job"
	"github.com/3leaps/ttgen/pkg/render"
)

// generateJobName names the implicit job built by generate.
const generateJobName = "anonymous"

var generateCmd = &cobra.Command{
	Use:   "generate TEMPLATE DATA [OUTPUT|-]",
	Short: "Generate a single file from TEMPLATE and DATA",
	Long: `Render TEMPLATE against the JSON file DATA and write the result to
OUTPUT, or to stdout when OUTPUT is "-" or omitted.

generate always renders; staleness checks apply only to batch commands.

Examples:
  ttgen generate page.tmpl page.json
  ttgen generate page.tmpl page.json out/page.rst`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	output := job.StdoutOutput
	if len(args) == 3 {
		output = args[2]
	}

	j, err := job.New(generateJobName, args[1], args[0], output)
	if err != nil {
		observability.CLILogger.Error("Missing input files", zap.Error(err))
		return exitError(foundry.ExitFileNotFound, "Missing input files", err)
	}

	content, err := newRenderer().Render(j)
	if err != nil {
		observability.CLILogger.Error("Render failed",
			zap.String("template", j.Template),
			zap.String("kind", string(builderr.KindOf(err))),
			zap.Error(err))
		return exitError(generateExitCode(err), "Render failed", err)
	}

	sink := render.SinkFor(j, render.NewStdoutSink(cmd.OutOrStdout()))
	if err := sink.Write(content); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}

	observability.CLILogger.Debug("Generated", zap.String("output", output), zap.Int("bytes", len(content)))
	return nil
}

func generateExitCode(err error) int {
	var ioErr *builderr.IOError
	if errors.As(err, &ioErr) {
		return foundry.ExitFileReadError
	}
	return foundry.ExitInvalidArgument
}
