package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ttgen/internal/observability"
	"github.com/3leaps/ttgen/pkg/job"
	"github.com/3leaps/ttgen/pkg/scheduler"
	"github.com/3leaps/ttgen/pkg/watch"
)

var (
	watchOpts     batchOptions
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch SPEC",
	Short: "Rebuild outputs whenever their inputs change",
	Long: `Run multigen for SPEC, then keep watching SPEC and every data and
template file it references. After a burst of changes settles, SPEC is
reloaded and multigen runs again. Stop with Ctrl-C.

Examples:
  ttgen watch ttgen.json
  ttgen watch ttgen.yaml --debounce 2s --only 'docs/**'`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchOpts.register(watchCmd, false, false)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before rebuilding (default from config)")
}

// watchedPaths lists the spec and every job input.
func watchedPaths(spec string, jobs []*job.Job) []string {
	paths := []string{spec}
	for _, j := range jobs {
		paths = append(paths, j.Data, j.Template)
	}
	return paths
}

func runWatch(cmd *cobra.Command, args []string) error {
	spec := args[0]
	ctx := cmd.Context()

	jobs, err := loadJobs(spec, watchOpts.only)
	if err != nil {
		return err
	}

	r, err := newRunner(cmd, watchOpts.maxJobs)
	if err != nil {
		return err
	}
	defer r.close()

	if _, err := r.run(ctx, jobs, scheduler.Generate, false, false); err != nil {
		return err
	}

	debounce := currentConfig().Watch.Debounce
	if watchDebounce > 0 {
		debounce = watchDebounce
	}

	w, err := watch.New(watchedPaths(spec, jobs), debounce, observability.CLILogger)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to start watcher", err)
	}

	observability.CLILogger.Info("Watching for changes",
		zap.String("spec", spec),
		zap.Int("files", w.Files()),
		zap.Duration("debounce", debounce))

	err = w.Run(ctx, func(ctx context.Context, changed []string) ([]string, error) {
		observability.CLILogger.Info("Rebuilding", zap.Strings("changed", changed))

		reloaded, err := loadJobs(spec, watchOpts.only)
		if err != nil {
			// The previous file set stays watched.
			return nil, err
		}
		if _, err := r.run(ctx, reloaded, scheduler.Generate, false, false); err != nil {
			return nil, err
		}
		return watchedPaths(spec, reloaded), nil
	})
	return watchExit(ctx, err)
}

// watchExit maps the watcher's return onto the command result. A cancelled
// context ends the loop with a nil error but still counts as an interrupt.
func watchExit(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return exitError(foundry.ExitSignalInt, "Interrupted", ctxErr)
	}
	return err
}
