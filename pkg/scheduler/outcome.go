package scheduler

import (
	"time"

	"github.com/3leaps/ttgen/pkg/builderr"
	"github.com/3leaps/ttgen/pkg/job"
	"github.com/3leaps/ttgen/pkg/report"
)

// Action selects what Run does with each job.
type Action int

const (
	// Generate renders every job that needs building.
	Generate Action = iota

	// Delete removes every job's output.
	Delete

	// ReportGenerate reports what Generate would do without doing it.
	ReportGenerate

	// ReportDelete reports what Delete would do without doing it.
	ReportDelete

	// Count reports the number of jobs.
	Count
)

func (a Action) String() string {
	switch a {
	case Generate:
		return "generate"
	case Delete:
		return "delete"
	case ReportGenerate:
		return "report-generate"
	case ReportDelete:
		return "report-delete"
	case Count:
		return "count"
	default:
		return "unknown"
	}
}

// IsReport reports whether a never touches the filesystem.
func (a Action) IsReport() bool {
	return a == ReportGenerate || a == ReportDelete || a == Count
}

// OutcomeKind is the terminal state of one job.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Skipped
	Failed
	Removed
	RemoveFailed
	Reported
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return report.OutcomeSuccess
	case Skipped:
		return report.OutcomeSkipped
	case Failed:
		return report.OutcomeFailed
	case Removed:
		return report.OutcomeRemoved
	case RemoveFailed:
		return report.OutcomeRemoveFailed
	case Reported:
		return report.OutcomeReported
	default:
		return "unknown"
	}
}

// Dry-run verdicts carried by Reported outcomes.
const (
	WouldBuild      = "would build"
	WouldSkip       = "would skip"
	WouldRemove     = "would remove"
	NothingToRemove = "nothing to remove"
)

// Outcome is the result of processing one job.
//
// Err is set for Failed and RemoveFailed. Report is set for Reported.
// Reason optionally explains a Skipped or Reported outcome.
type Outcome struct {
	Kind   OutcomeKind
	Err    error
	Report string
	Reason string
}

// IsFailure reports whether the outcome is Failed or RemoveFailed.
func (o Outcome) IsFailure() bool {
	return o.Kind == Failed || o.Kind == RemoveFailed
}

// Result pairs a job with its outcome.
type Result struct {
	Job      *job.Job
	Outcome  Outcome
	Duration time.Duration
}

// Record converts r into the report record for action.
func (r Result) Record(action Action) *report.OutcomeRecord {
	rec := &report.OutcomeRecord{
		Job:      r.Job.String(),
		Output:   r.Job.Output,
		Action:   action.String(),
		Outcome:  r.Outcome.Kind.String(),
		Report:   r.Outcome.Report,
		Reason:   r.Outcome.Reason,
		Duration: r.Duration,
	}
	if r.Outcome.Err != nil {
		rec.Error = r.Outcome.Err.Error()
		rec.ErrorKind = string(builderr.KindOf(r.Outcome.Err))
	}
	return rec
}
