package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Writer emits job outcomes.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. Each Write* call emits one complete line.
type Writer interface {
	// WriteOutcome emits the outcome of one job.
	WriteOutcome(ctx context.Context, rec *OutcomeRecord) error

	// WriteCount emits a batch size.
	WriteCount(ctx context.Context, rec *CountRecord) error

	// WriteSummary emits the aggregate of a run.
	WriteSummary(ctx context.Context, rec *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// Output formats accepted by New.
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

// New returns the Writer for format. Text output splits failures onto
// errOut; JSONL output keeps every record on out.
func New(format string, out, errOut io.Writer, runID string) (Writer, error) {
	switch format {
	case "", FormatText:
		return NewTextWriter(out, errOut), nil
	case FormatJSONL:
		return NewJSONLWriter(out, runID), nil
	default:
		return nil, fmt.Errorf("unknown report format %q (expected %s or %s)", format, FormatText, FormatJSONL)
	}
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes.
type JSONLWriter struct {
	w     io.Writer
	runID string
	mu    sync.Mutex

	closed bool
}

// NewJSONLWriter creates a JSONL writer stamping every record with runID.
func NewJSONLWriter(w io.Writer, runID string) *JSONLWriter {
	return &JSONLWriter{w: w, runID: runID}
}

func (jw *JSONLWriter) WriteOutcome(ctx context.Context, rec *OutcomeRecord) error {
	return jw.writeRecord(ctx, TypeOutcome, rec)
}

func (jw *JSONLWriter) WriteCount(ctx context.Context, rec *CountRecord) error {
	return jw.writeRecord(ctx, TypeCount, rec)
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, rec *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, rec)
}

// Close marks the writer as closed. The underlying writer is not closed.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		RunID: jw.runID,
		Data:  dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll writes all bytes to w, handling short writes.
//
// io.Writer.Write may return n < len(p) with a nil error; looping keeps
// lines whole.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Writer = (*JSONLWriter)(nil)
