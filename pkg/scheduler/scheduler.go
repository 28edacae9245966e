// Package scheduler runs a batch of independent jobs on a bounded worker
// pool.
//
// Each job yields exactly one Outcome. A failing job never stops its
// siblings and never makes Run fail; failures are reported through the
// outcome stream and counted in the Summary.
package scheduler

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/ttgen/pkg/builderr"
	"github.com/3leaps/ttgen/pkg/job"
	"github.com/3leaps/ttgen/pkg/metrics"
	"github.com/3leaps/ttgen/pkg/render"
	"github.com/3leaps/ttgen/pkg/report"
	"github.com/3leaps/ttgen/pkg/staleness"
)

// Config configures scheduler behavior.
type Config struct {
	// WorkerLimit caps the worker pool. Zero means one worker per CPU.
	// See ResolveWorkers for the exact rule.
	WorkerLimit int

	// RateLimit is the maximum number of job starts per second.
	// Zero means unlimited.
	RateLimit float64

	// CPUs overrides the detected CPU count. Zero means runtime.NumCPU().
	CPUs int
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		WorkerLimit: 0,
		RateLimit:   0,
	}
}

// ResolveWorkers returns the pool size for a batch.
//
// A limit of zero, or one at or above the CPU count, yields cpus. Any other
// limit yields min(limit, jobs). The result is never below one.
func ResolveWorkers(limit, jobs, cpus int) int {
	if cpus < 1 {
		cpus = 1
	}
	n := cpus
	if limit > 0 && limit < cpus {
		n = min(limit, jobs)
	}
	return max(n, 1)
}

// Summary contains aggregate statistics from a completed run.
type Summary struct {
	Action    Action
	Jobs      int
	Workers   int
	Succeeded int64
	Skipped   int64
	Failed    int64
	Removed   int64
	Reported  int64
	Duration  time.Duration
}

// Record converts s into a report record.
func (s *Summary) Record() *report.SummaryRecord {
	return &report.SummaryRecord{
		Action:        s.Action.String(),
		Jobs:          s.Jobs,
		Workers:       s.Workers,
		Succeeded:     s.Succeeded,
		Skipped:       s.Skipped,
		Failed:        s.Failed,
		Removed:       s.Removed,
		Reported:      s.Reported,
		Duration:      s.Duration,
		DurationHuman: s.Duration.Round(time.Millisecond).String(),
	}
}

// Scheduler executes batches of jobs.
//
// A Scheduler holds no per-run state and may be reused for successive runs.
type Scheduler struct {
	renderer render.Renderer
	cfg      Config
	writer   report.Writer
	logger   *zap.Logger
	recorder metrics.Recorder
	stdout   render.Sink
	oracle   *staleness.Oracle
	remove   func(string) error
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithWriter streams every outcome to w as it completes.
func WithWriter(w report.Writer) Option {
	return func(s *Scheduler) { s.writer = w }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithStdout sets the sink shared by every job that writes to stdout.
func WithStdout(sink render.Sink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.stdout = sink
		}
	}
}

// WithOracle sets the staleness oracle.
func WithOracle(o *staleness.Oracle) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.oracle = o
		}
	}
}

// New creates a scheduler rendering through r.
func New(r render.Renderer, cfg Config, opts ...Option) *Scheduler {
	if cfg.WorkerLimit < 0 {
		cfg.WorkerLimit = DefaultConfig().WorkerLimit
	}
	if cfg.RateLimit < 0 {
		cfg.RateLimit = DefaultConfig().RateLimit
	}
	if cfg.CPUs <= 0 {
		cfg.CPUs = runtime.NumCPU()
	}

	s := &Scheduler{
		renderer: r,
		cfg:      cfg,
		logger:   zap.NewNop(),
		recorder: metrics.NoopRecorder{},
		stdout:   render.NewStdoutSink(nil),
		oracle:   staleness.NewOracle(nil),
		remove:   os.Remove,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run applies action to every job and returns the aggregate summary and
// one Result per job, in batch order.
//
// Results are streamed to the configured writer in completion order. Run
// returns an error only when the writer fails to emit the summary or the
// count; job failures are carried in the results.
func (s *Scheduler) Run(ctx context.Context, jobs []*job.Job, action Action, force bool) (*Summary, []Result, error) {
	start := time.Now()
	sum := &Summary{Action: action, Jobs: len(jobs)}

	if action == Count {
		sum.Duration = time.Since(start)
		if s.writer != nil {
			if err := s.writer.WriteCount(ctx, &report.CountRecord{Count: len(jobs)}); err != nil {
				return sum, nil, err
			}
		}
		return sum, nil, nil
	}

	workers := ResolveWorkers(s.cfg.WorkerLimit, len(jobs), s.cfg.CPUs)
	sum.Workers = workers

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), 1)
	}

	s.logger.Debug("run starting",
		zap.String("action", action.String()),
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", workers),
		zap.Bool("force", force),
	)

	var (
		succeeded, skipped, failed, removed, reported atomic.Int64
		writeErrs                                     atomic.Int64
	)

	results := make([]Result, len(jobs))
	workCh := make(chan int)

	go func() {
		defer close(workCh)
		for i := range jobs {
			workCh <- i
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				j := jobs[i]
				jobStart := time.Now()

				var out Outcome
				if err := waitForRateLimit(ctx, limiter); err != nil {
					out = Outcome{Kind: Failed, Err: err}
				} else if err := ctx.Err(); err != nil {
					out = Outcome{Kind: Failed, Err: err}
				} else {
					out = s.runOne(j, action, force)
				}

				res := Result{Job: j, Outcome: out, Duration: time.Since(jobStart)}
				results[i] = res

				switch out.Kind {
				case Success:
					succeeded.Add(1)
				case Skipped:
					skipped.Add(1)
				case Failed, RemoveFailed:
					failed.Add(1)
				case Removed:
					removed.Add(1)
				case Reported:
					reported.Add(1)
				}

				if out.IsFailure() {
					s.logger.Warn("job failed",
						zap.String("job", j.String()),
						zap.String("action", action.String()),
						zap.String("kind", string(builderr.KindOf(out.Err))),
						zap.Error(out.Err),
					)
				} else {
					s.logger.Debug("job done",
						zap.String("job", j.String()),
						zap.String("outcome", out.Kind.String()),
					)
				}
				s.recorder.ObserveJob(action.String(), out.Kind.String(), res.Duration)

				if s.writer != nil {
					if err := s.writer.WriteOutcome(context.WithoutCancel(ctx), res.Record(action)); err != nil {
						writeErrs.Add(1)
						s.logger.Error("failed to write outcome", zap.String("job", j.String()), zap.Error(err))
					}
				}
			}
		}()
	}
	wg.Wait()

	sum.Succeeded = succeeded.Load()
	sum.Skipped = skipped.Load()
	sum.Failed = failed.Load()
	sum.Removed = removed.Load()
	sum.Reported = reported.Load()
	sum.Duration = time.Since(start)

	s.recorder.ObserveRun(action.String(), len(jobs), workers, sum.Duration)
	s.logger.Debug("run finished",
		zap.String("action", action.String()),
		zap.Int64("failed", sum.Failed),
		zap.Duration("duration", sum.Duration),
	)

	if s.writer != nil {
		if err := s.writer.WriteSummary(context.WithoutCancel(ctx), sum.Record()); err != nil {
			return sum, results, err
		}
	}
	if n := writeErrs.Load(); n > 0 {
		return sum, results, errors.New("report writer failed for one or more outcomes")
	}
	return sum, results, nil
}

func (s *Scheduler) runOne(j *job.Job, action Action, force bool) Outcome {
	switch action {
	case Generate:
		return s.generate(j, force)
	case Delete:
		return s.delete(j)
	case ReportGenerate:
		return s.reportGenerate(j, force)
	case ReportDelete:
		return s.reportDelete(j)
	default:
		return Outcome{Kind: Failed, Err: errors.New("unsupported action " + action.String())}
	}
}

// eligible reports whether j should be built and why.
func (s *Scheduler) eligible(j *job.Job, force bool) (bool, string) {
	if force {
		return true, "forced"
	}
	if j.WritesStdout() {
		return true, "stdout"
	}
	res := s.oracle.Classify(j)
	if res.Status == staleness.CannotDetermine && res.Err != nil {
		s.logger.Debug("staleness undetermined", zap.String("job", j.String()), zap.Error(res.Err))
	}
	return res.NeedsBuild(), res.Status.String()
}

func (s *Scheduler) generate(j *job.Job, force bool) Outcome {
	ok, reason := s.eligible(j, force)
	if !ok {
		return Outcome{Kind: Skipped, Reason: reason}
	}
	if err := j.Validate(); err != nil {
		return Outcome{Kind: Failed, Err: err}
	}
	content, err := s.renderer.Render(j)
	if err != nil {
		return Outcome{Kind: Failed, Err: err}
	}
	if err := render.SinkFor(j, s.stdout).Write(content); err != nil {
		return Outcome{Kind: Failed, Err: err}
	}
	return Outcome{Kind: Success}
}

func (s *Scheduler) delete(j *job.Job) Outcome {
	if j.WritesStdout() {
		return Outcome{Kind: Skipped, Reason: "stdout output"}
	}
	if err := s.remove(j.Output); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Outcome{Kind: Skipped, Reason: "output absent"}
		}
		return Outcome{Kind: RemoveFailed, Err: builderr.NewIOError("remove", j.Output, err)}
	}
	return Outcome{Kind: Removed}
}

func (s *Scheduler) reportGenerate(j *job.Job, force bool) Outcome {
	ok, reason := s.eligible(j, force)
	if !ok {
		return Outcome{Kind: Reported, Report: WouldSkip, Reason: reason}
	}
	return Outcome{Kind: Reported, Report: WouldBuild, Reason: reason}
}

func (s *Scheduler) reportDelete(j *job.Job) Outcome {
	if j.WritesStdout() {
		return Outcome{Kind: Reported, Report: NothingToRemove, Reason: "stdout output"}
	}
	if _, err := os.Lstat(j.Output); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Outcome{Kind: Reported, Report: NothingToRemove}
		}
		return Outcome{Kind: Failed, Err: builderr.NewIOError("stat", j.Output, err)}
	}
	return Outcome{Kind: Reported, Report: WouldRemove}
}

// waitForRateLimit blocks until the limiter allows a job start.
// Returns immediately if rate limiting is disabled.
func waitForRateLimit(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
