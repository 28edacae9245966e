// Package builderr defines the error types produced while loading,
// validating and building ttgen jobs.
//
// The set is closed: every failure surfaced by the build engine is one of
// MissingFilesError, IOError, ParseError or RenderError, optionally wrapped
// with additional context via fmt.Errorf("%w"). KindOf recovers the
// classification from any such chain.
package builderr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a build error.
type Kind string

const (
	// KindUnknown is returned by KindOf for errors outside the taxonomy.
	KindUnknown Kind = "unknown"

	// KindInputMissing means a data or template file was absent.
	KindInputMissing Kind = "input_missing"

	// KindIO means a filesystem read, write, delete or stat failed.
	KindIO Kind = "io"

	// KindParse means a batch specification or data file was malformed.
	KindParse Kind = "parse"

	// KindRender means the template engine rejected the template or data.
	KindRender Kind = "render"
)

// MissingPath names one absent input file.
type MissingPath struct {
	// Role is "data" or "template".
	Role string

	// Path is the path as declared by the job.
	Path string
}

// MissingFilesError aggregates every missing input of a job.
type MissingFilesError struct {
	Paths []MissingPath
}

func (e *MissingFilesError) Error() string {
	if len(e.Paths) == 0 {
		return "missing file"
	}
	var b strings.Builder
	for i, p := range e.Paths {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "missing file: %s file: %s", p.Role, p.Path)
	}
	return b.String()
}

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	// Op is the failed operation (e.g., "stat", "read", "write", "remove").
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError reports a malformed batch specification or data file.
type ParseError struct {
	Path string

	// Format is the decoder that failed (json, yaml, hcl, schema).
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Path != "" && e.Format != "":
		return fmt.Sprintf("parse %s (%s): %v", e.Path, e.Format, e.Err)
	case e.Path != "":
		return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("parse: %v", e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// RenderError reports a template that failed to parse or execute.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// KindOf returns the classification of err, searching wrapped errors.
func KindOf(err error) Kind {
	var (
		missing *MissingFilesError
		ioErr   *IOError
		parse   *ParseError
		render  *RenderError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &missing):
		return KindInputMissing
	case errors.As(err, &render):
		return KindRender
	case errors.As(err, &parse):
		return KindParse
	case errors.As(err, &ioErr):
		return KindIO
	default:
		return KindUnknown
	}
}

// NewIOError is a convenience constructor returning nil when err is nil.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}
