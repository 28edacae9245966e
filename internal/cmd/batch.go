package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ttgen/internal/config"
	"github.com/3leaps/ttgen/internal/observability"
	"github.com/3leaps/ttgen/pkg/batch"
	"github.com/3leaps/ttgen/pkg/job"
	"github.com/3leaps/ttgen/pkg/metrics"
	"github.com/3leaps/ttgen/pkg/render"
	"github.com/3leaps/ttgen/pkg/report"
	"github.com/3leaps/ttgen/pkg/scheduler"
)

// batchOptions are the flags shared by batch commands.
type batchOptions struct {
	maxJobs int
	only    []string
	force   bool
	strict  bool
}

func (o *batchOptions) register(cmd *cobra.Command, withForce, withStrict bool) {
	cmd.Flags().IntVarP(&o.maxJobs, "max-jobs", "j", -1, "Maximum number of parallel jobs (0 = one per CPU; default from config)")
	cmd.Flags().StringArrayVar(&o.only, "only", nil, "Only process jobs whose name or output matches GLOB (repeatable)")
	if withForce {
		cmd.Flags().BoolVarP(&o.force, "force", "f", false, "Rebuild every job regardless of staleness")
	}
	if withStrict {
		cmd.Flags().BoolVar(&o.strict, "strict", false, "Exit nonzero when any job fails")
	}
}

// currentConfig returns the loaded config, or defaults when a command runs
// without the root pre-run (as in some tests).
func currentConfig() *config.Config {
	if appConfig != nil {
		return appConfig
	}
	return &config.Config{
		Logging:   config.LoggingConfig{Level: "info", Format: "console"},
		Report:    config.ReportConfig{Format: report.FormatText},
		Watch:     config.WatchConfig{},
		Scheduler: config.SchedulerConfig{},
	}
}

// loadJobs loads a batch spec and applies --only selection.
func loadJobs(path string, only []string) ([]*job.Job, error) {
	jobs, err := batch.Load(path)
	if err != nil {
		observability.CLILogger.Error("Failed to load batch spec", zap.String("path", path), zap.Error(err))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, exitError(foundry.ExitFileNotFound, "Batch spec not found", err)
		}
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid batch spec", err)
	}

	selected, err := batch.Select(jobs, only)
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid --only pattern", err)
	}
	observability.CLILogger.Debug("Loaded batch spec",
		zap.String("path", path),
		zap.Int("jobs", len(jobs)),
		zap.Int("selected", len(selected)))
	return selected, nil
}

// newRenderer builds the renderer stamped with this build's version.
func newRenderer() *render.TemplateRenderer {
	return render.New(render.Options{
		ToolName: config.AppName,
		Version:  versionInfo.Version,
		Logger:   observability.CLILogger,
	})
}

// runner bundles what a batch command needs to execute one run.
type runner struct {
	sched    *scheduler.Scheduler
	writer   report.Writer
	recorder *metrics.PrometheusRecorder
	textfile string
}

// newRunner wires a scheduler to the configured report writer and
// metrics recorder. maxJobs below zero defers to config.
func newRunner(cmd *cobra.Command, maxJobs int) (*runner, error) {
	cfg := currentConfig()

	writer, err := report.New(cfg.Report.Format, cmd.OutOrStdout(), cmd.ErrOrStderr(), uuid.New().String())
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid report format", err)
	}

	workers := cfg.Scheduler.Workers
	if maxJobs >= 0 {
		workers = maxJobs
	}

	r := &runner{writer: writer, textfile: cfg.Metrics.Textfile}
	opts := []scheduler.Option{
		scheduler.WithWriter(writer),
		scheduler.WithLogger(observability.CLILogger),
		scheduler.WithStdout(render.NewStdoutSink(cmd.OutOrStdout())),
	}
	if r.textfile != "" {
		r.recorder = metrics.NewPrometheusRecorder(nil)
		opts = append(opts, scheduler.WithRecorder(r.recorder))
	}

	r.sched = scheduler.New(newRenderer(), scheduler.Config{
		WorkerLimit: workers,
		RateLimit:   cfg.Scheduler.RateLimit,
	}, opts...)
	return r, nil
}

// run executes one batch run. With strict set, any failed job turns into
// a nonzero exit after the whole batch has run.
func (r *runner) run(ctx context.Context, jobs []*job.Job, action scheduler.Action, force, strict bool) (*scheduler.Summary, error) {
	sum, _, err := r.sched.Run(ctx, jobs, action, force)
	if err != nil {
		return sum, exitError(foundry.ExitFileWriteError, "Failed to write report", err)
	}

	if r.recorder != nil {
		if err := r.recorder.WriteTextfile(r.textfile); err != nil {
			observability.CLILogger.Warn("Failed to write metrics textfile", zap.String("path", r.textfile), zap.Error(err))
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return sum, exitError(foundry.ExitSignalInt, "Interrupted", ctxErr)
	}
	if strict && sum.Failed > 0 {
		return sum, exitError(foundry.ExitFileWriteError, fmt.Sprintf("%d of %d jobs failed", sum.Failed, sum.Jobs), nil)
	}
	return sum, nil
}

func (r *runner) close() {
	if err := r.writer.Close(); err != nil {
		observability.CLILogger.Debug("Failed to close report writer", zap.Error(err))
	}
}

// runBatchCommand loads spec, runs action over the selected jobs and
// closes the report.
func runBatchCommand(cmd *cobra.Command, spec string, opts *batchOptions, action scheduler.Action) error {
	jobs, err := loadJobs(spec, opts.only)
	if err != nil {
		return err
	}

	r, err := newRunner(cmd, opts.maxJobs)
	if err != nil {
		return err
	}
	defer r.close()

	_, err = r.run(cmd.Context(), jobs, action, opts.force, opts.strict)
	return err
}
