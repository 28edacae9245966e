package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLWriter_WriteOutcome(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-123")

	rec := &OutcomeRecord{
		Job:       "doc",
		Output:    "doc.rst",
		Action:    "generate",
		Outcome:   OutcomeFailed,
		Error:     "render doc.tmpl: boom",
		ErrorKind: "render",
		Duration:  5 * time.Millisecond,
	}
	require.NoError(t, w.WriteOutcome(context.Background(), rec))

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeOutcome, record.Type)
	assert.Equal(t, "run-123", record.RunID)
	assert.False(t, record.TS.IsZero())

	var got OutcomeRecord
	require.NoError(t, json.Unmarshal(record.Data, &got))
	assert.Equal(t, *rec, got)
}

func TestJSONLWriter_CountAndSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run-1")

	require.NoError(t, w.WriteCount(context.Background(), &CountRecord{Count: 7}))
	require.NoError(t, w.WriteSummary(context.Background(), &SummaryRecord{Action: "generate", Jobs: 7, Succeeded: 5, Skipped: 2}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, TypeCount, first.Type)
	assert.Equal(t, TypeSummary, second.Type)

	var count CountRecord
	require.NoError(t, json.Unmarshal(first.Data, &count))
	assert.Equal(t, 7, count.Count)
}

func TestJSONLWriter_Closed(t *testing.T) {
	w := NewJSONLWriter(&bytes.Buffer{}, "run")
	require.NoError(t, w.Close())

	err := w.WriteCount(context.Background(), &CountRecord{})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestJSONLWriter_CancelledContext(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.WriteCount(ctx, &CountRecord{}), context.Canceled)
	assert.Zero(t, buf.Len())
}

// shortWriter accepts at most two bytes per call.
type shortWriter struct {
	buf bytes.Buffer
}

func (s *shortWriter) Write(p []byte) (int, error) {
	if len(p) > 2 {
		p = p[:2]
	}
	return s.buf.Write(p)
}

func TestJSONLWriter_ShortWrites(t *testing.T) {
	sw := &shortWriter{}
	w := NewJSONLWriter(sw, "run")

	require.NoError(t, w.WriteCount(context.Background(), &CountRecord{Count: 3}))
	var record Record
	require.NoError(t, json.Unmarshal(sw.buf.Bytes(), &record))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestJSONLWriter_WriteFailure(t *testing.T) {
	w := NewJSONLWriter(failingWriter{}, "run")

	err := w.WriteCount(context.Background(), &CountRecord{})
	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "write", werr.Op)
}

func TestJSONLWriter_ConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "run")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.WriteOutcome(context.Background(), &OutcomeRecord{Job: "doc", Outcome: OutcomeSuccess})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		var record Record
		require.NoError(t, json.Unmarshal([]byte(line), &record))
	}
}

func TestFormatOutcome(t *testing.T) {
	tests := []struct {
		name    string
		rec     OutcomeRecord
		want    string
		failure bool
	}{
		{name: "success", rec: OutcomeRecord{Job: "doc", Outcome: OutcomeSuccess}, want: "success: doc"},
		{name: "skipped", rec: OutcomeRecord{Job: "doc", Outcome: OutcomeSkipped, Reason: "up to date"}, want: "skipped: doc (up to date)"},
		{name: "failed", rec: OutcomeRecord{Job: "doc", Outcome: OutcomeFailed, Error: "boom"}, want: "error: doc: boom", failure: true},
		{name: "removed", rec: OutcomeRecord{Job: "doc", Outcome: OutcomeRemoved}, want: "removed: doc"},
		{name: "remove failed", rec: OutcomeRecord{Job: "doc", Outcome: OutcomeRemoveFailed, Error: "denied"}, want: "remove failed: doc: denied", failure: true},
		{name: "would build", rec: OutcomeRecord{Job: "doc", Outcome: OutcomeReported, Report: "would build", Reason: "file missing"}, want: "would build: doc (file missing)"},
		{name: "would remove", rec: OutcomeRecord{Job: "doc", Outcome: OutcomeReported, Report: "would remove"}, want: "would remove: doc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, failure := FormatOutcome(&tt.rec)
			assert.Equal(t, tt.want, line)
			assert.Equal(t, tt.failure, failure)
		})
	}
}

func TestTextWriter_SplitsFailures(t *testing.T) {
	var out, errOut bytes.Buffer
	w := NewTextWriter(&out, &errOut)
	ctx := context.Background()

	require.NoError(t, w.WriteOutcome(ctx, &OutcomeRecord{Job: "a", Outcome: OutcomeSuccess}))
	require.NoError(t, w.WriteOutcome(ctx, &OutcomeRecord{Job: "b", Outcome: OutcomeFailed, Error: "boom"}))
	require.NoError(t, w.WriteCount(ctx, &CountRecord{Count: 2}))
	require.NoError(t, w.WriteSummary(ctx, &SummaryRecord{Action: "generate", Jobs: 2, Succeeded: 1, Failed: 1}))

	assert.Equal(t, "success: a\ncount: 2\n", out.String())
	assert.True(t, strings.HasPrefix(errOut.String(), "error: b: boom\ngenerate: 2 jobs, 1 succeeded"))
}

func TestNew(t *testing.T) {
	var out bytes.Buffer

	w, err := New("", &out, nil, "run")
	require.NoError(t, err)
	assert.IsType(t, &TextWriter{}, w)

	w, err = New(FormatJSONL, &out, nil, "run")
	require.NoError(t, err)
	assert.IsType(t, &JSONLWriter{}, w)

	_, err = New("xml", &out, nil, "run")
	assert.Error(t, err)
}
