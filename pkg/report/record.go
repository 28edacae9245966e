// Package report emits one self-contained line per job outcome.
//
// Outcomes arrive in worker completion order, so every line carries the
// job name and its outcome; nothing depends on ordering across jobs. Two
// renderings exist: plain text for terminals and JSONL record envelopes for
// machines.
package report

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: ttgen.<type>.v<version>
const (
	// TypeOutcome identifies per-job outcome records.
	TypeOutcome = "ttgen.outcome.v1"

	// TypeCount identifies batch count records.
	TypeCount = "ttgen.count.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "ttgen.summary.v1"
)

// Outcome names as they appear in records.
const (
	OutcomeSuccess      = "success"
	OutcomeSkipped      = "skipped"
	OutcomeFailed       = "failed"
	OutcomeRemoved      = "removed"
	OutcomeRemoveFailed = "remove_failed"
	OutcomeReported     = "reported"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "ttgen.outcome.v1").
	Type string `json:"type"`

	// TS is the time the record was written.
	TS time.Time `json:"ts"`

	// RunID correlates every record of one invocation.
	RunID string `json:"run_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// OutcomeRecord describes what happened to one job.
type OutcomeRecord struct {
	// Job is the job name.
	Job string `json:"job"`

	// Output is the job's output path.
	Output string `json:"output,omitempty"`

	// Action is the scheduler action (generate, delete, report-generate, report-delete).
	Action string `json:"action"`

	// Outcome is one of the Outcome* constants.
	Outcome string `json:"outcome"`

	// Report is the dry-run verdict ("would build", "would skip", "would remove",
	// "nothing to remove"). Set only for reported outcomes.
	Report string `json:"report,omitempty"`

	// Reason explains the outcome, typically the staleness status.
	Reason string `json:"reason,omitempty"`

	// Error is the failure message for failed outcomes.
	Error string `json:"error,omitempty"`

	// ErrorKind classifies Error (input_missing, io, parse, render).
	ErrorKind string `json:"error_kind,omitempty"`

	Duration time.Duration `json:"duration_ns"`
}

// CountRecord carries the size of a batch.
type CountRecord struct {
	Count int `json:"count"`
}

// SummaryRecord aggregates a completed run.
type SummaryRecord struct {
	Action        string        `json:"action"`
	Jobs          int           `json:"jobs"`
	Workers       int           `json:"workers"`
	Succeeded     int64         `json:"succeeded"`
	Skipped       int64         `json:"skipped"`
	Failed        int64         `json:"failed"`
	Removed       int64         `json:"removed"`
	Reported      int64         `json:"reported"`
	Duration      time.Duration `json:"duration_ns"`
	DurationHuman string        `json:"duration"`
}

var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return "report " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
