package report

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// TextWriter writes human-readable lines. Failures go to errOut, everything
// else to out:
//
//	success: doc
//	skipped: doc (up to date)
//	error: doc: render doc.tmpl: ...
//	removed: doc
//	remove failed: doc: remove doc.rst: ...
//	would build: doc (out of date)
//	count: 3
type TextWriter struct {
	out    io.Writer
	errOut io.Writer
	mu     sync.Mutex

	closed bool
}

// NewTextWriter returns a TextWriter. A nil errOut sends failures to out.
func NewTextWriter(out, errOut io.Writer) *TextWriter {
	if errOut == nil {
		errOut = out
	}
	return &TextWriter{out: out, errOut: errOut}
}

func (tw *TextWriter) WriteOutcome(ctx context.Context, rec *OutcomeRecord) error {
	line, toErr := FormatOutcome(rec)
	dst := tw.out
	if toErr {
		dst = tw.errOut
	}
	return tw.writeLine(ctx, dst, line)
}

func (tw *TextWriter) WriteCount(ctx context.Context, rec *CountRecord) error {
	return tw.writeLine(ctx, tw.out, fmt.Sprintf("count: %d", rec.Count))
}

// WriteSummary writes the run totals to errOut so that out carries only
// per-job lines.
func (tw *TextWriter) WriteSummary(ctx context.Context, rec *SummaryRecord) error {
	line := fmt.Sprintf("%s: %d jobs, %d succeeded, %d skipped, %d failed, %d removed, %d reported in %s",
		rec.Action, rec.Jobs, rec.Succeeded, rec.Skipped, rec.Failed, rec.Removed, rec.Reported,
		rec.Duration.Round(time.Millisecond))
	return tw.writeLine(ctx, tw.errOut, line)
}

func (tw *TextWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.closed = true
	return nil
}

func (tw *TextWriter) writeLine(ctx context.Context, w io.Writer, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return ErrWriterClosed
	}
	if err := writeAll(w, []byte(line+"\n")); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// FormatOutcome renders rec as one line and reports whether it describes a
// failure.
func FormatOutcome(rec *OutcomeRecord) (string, bool) {
	switch rec.Outcome {
	case OutcomeSuccess:
		return "success: " + rec.Job, false
	case OutcomeSkipped:
		return withReason("skipped: "+rec.Job, rec.Reason), false
	case OutcomeFailed:
		return fmt.Sprintf("error: %s: %s", rec.Job, rec.Error), true
	case OutcomeRemoved:
		return "removed: " + rec.Job, false
	case OutcomeRemoveFailed:
		return fmt.Sprintf("remove failed: %s: %s", rec.Job, rec.Error), true
	case OutcomeReported:
		return withReason(rec.Report+": "+rec.Job, rec.Reason), false
	default:
		return fmt.Sprintf("%s: %s", rec.Outcome, rec.Job), false
	}
}

func withReason(line, reason string) string {
	if reason == "" {
		return line
	}
	return line + " (" + reason + ")"
}

var _ Writer = (*TextWriter)(nil)
