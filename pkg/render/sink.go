package render

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/3leaps/ttgen/pkg/builderr"
	"github.com/3leaps/ttgen/pkg/job"
)

// Sink receives a rendered document.
type Sink interface {
	Write(p []byte) error
}

// StdoutSink writes documents to an io.Writer, one whole document per call.
//
// StdoutSink is safe for concurrent use.
type StdoutSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewStdoutSink returns a sink writing to w, or os.Stdout when w is nil.
func NewStdoutSink(w io.Writer) *StdoutSink {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutSink{w: w}
}

func (s *StdoutSink) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return builderr.NewIOError("write", "<stdout>", writeAll(s.w, p))
}

// FileSink writes a document to a file, creating missing parent
// directories first.
//
// The content is written to a temporary file in the destination directory
// and renamed into place, so a failed write never leaves a partial output
// whose modification time would make it look current.
type FileSink struct {
	Path string
}

// NewFileSink returns a sink for path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (s *FileSink) Write(p []byte) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &builderr.IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".ttgen-*")
	if err != nil {
		return &builderr.IOError{Op: "create", Path: s.Path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := writeAll(tmp, p); err != nil {
		_ = tmp.Close()
		return &builderr.IOError{Op: "write", Path: s.Path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &builderr.IOError{Op: "write", Path: s.Path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &builderr.IOError{Op: "chmod", Path: s.Path, Err: err}
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return &builderr.IOError{Op: "rename", Path: s.Path, Err: err}
	}
	return nil
}

// SinkFor selects the sink for a job: the shared stdout sink when the job
// output is "-" or empty, a FileSink otherwise.
func SinkFor(j *job.Job, stdout Sink) Sink {
	if j.WritesStdout() {
		if stdout == nil {
			stdout = NewStdoutSink(nil)
		}
		return stdout
	}
	return NewFileSink(j.Output)
}

// writeAll writes all bytes to w, handling short writes.
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
