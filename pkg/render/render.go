// Package render turns a job's data and template into output bytes.
//
// Templates use Go text/template syntax in strict mode: referencing a key
// absent from the data map is a render error. Every template receives the
// job data under "root" alongside generation metadata:
//
//	name, version    tool identity
//	date             generation timestamp (RFC3339, fixed per Renderer)
//	data_file        data path as declared by the job
//	template_file    template path as declared by the job
//	data_hash        SHA-256 of the data file (hex)
//	template_hash    SHA-256 of the template file (hex)
//
// The builtin template "rst_stamp" renders a reStructuredText comment block
// recording this provenance: {{template "rst_stamp" .}}.
package render

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/ttgen/pkg/builderr"
	"github.com/3leaps/ttgen/pkg/job"
)

//go:embed builtins/rst_stamp.tmpl
var rstStamp string

// Renderer produces the output bytes for a job.
//
// Implementations must be safe for concurrent use.
type Renderer interface {
	Render(j *job.Job) ([]byte, error)
}

// Options configures a TemplateRenderer.
type Options struct {
	// ToolName is injected as "name". Default: "ttgen".
	ToolName string

	// Version is injected as "version". Default: "dev".
	Version string

	// Now supplies the generation timestamp. Default: time.Now.
	Now func() time.Time

	Logger *zap.Logger
}

// TemplateRenderer renders jobs with text/template.
type TemplateRenderer struct {
	toolName string
	version  string
	date     string
	logger   *zap.Logger
}

// New returns a TemplateRenderer. The generation timestamp is captured once
// here so every job rendered by this renderer carries the same date.
func New(opts Options) *TemplateRenderer {
	if opts.ToolName == "" {
		opts.ToolName = "ttgen"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &TemplateRenderer{
		toolName: opts.ToolName,
		version:  opts.Version,
		date:     opts.Now().UTC().Format(time.RFC3339),
		logger:   opts.Logger,
	}
}

// Render builds the data map for j and renders its template.
func (r *TemplateRenderer) Render(j *job.Job) ([]byte, error) {
	data, err := r.DataMap(j)
	if err != nil {
		return nil, err
	}
	return r.RenderTemplate(j.Template, data)
}

// DataMap builds the map handed to the template for j.
func (r *TemplateRenderer) DataMap(j *job.Job) (map[string]any, error) {
	dataHash, err := HashFile(j.Data)
	if err != nil {
		return nil, err
	}
	templateHash, err := HashFile(j.Template)
	if err != nil {
		return nil, err
	}
	root, err := LoadData(j.Data)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"name":          r.toolName,
		"version":       r.version,
		"date":          r.date,
		"data_file":     j.Data,
		"template_file": j.Template,
		"data_hash":     dataHash,
		"template_hash": templateHash,
		"root":          root,
	}, nil
}

// RenderTemplate renders the template at templatePath against data.
func (r *TemplateRenderer) RenderTemplate(templatePath string, data map[string]any) ([]byte, error) {
	src, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, &builderr.IOError{Op: "read", Path: templatePath, Err: err}
	}

	tpl, err := newTemplate(filepath.Base(templatePath))
	if err != nil {
		return nil, &builderr.RenderError{Template: templatePath, Err: err}
	}
	if _, err := tpl.Parse(string(src)); err != nil {
		return nil, &builderr.RenderError{Template: templatePath, Err: err}
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, &builderr.RenderError{Template: templatePath, Err: err}
	}

	r.logger.Debug("Rendered template",
		zap.String("template", templatePath),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// newTemplate returns a strict root template with helpers and builtins
// registered.
func newTemplate(name string) (*template.Template, error) {
	tpl := template.New(name).Funcs(Funcs()).Option("missingkey=error")
	if _, err := tpl.New("rst_stamp").Parse(rstStamp); err != nil {
		return nil, err
	}
	return tpl, nil
}

// LoadData reads and decodes a JSON data file holding a single value.
// Numbers are kept as json.Number so integers render without exponent notation.
func LoadData(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &builderr.IOError{Op: "read", Path: path, Err: err}
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &builderr.ParseError{Path: path, Format: "json", Err: err}
	}
	// Exactly one value; anything but whitespace after it is malformed.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("trailing data after JSON value")
		}
		return nil, &builderr.ParseError{Path: path, Format: "json", Err: err}
	}
	return v, nil
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &builderr.IOError{Op: "read", Path: path, Err: err}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", &builderr.IOError{Op: "read", Path: path, Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Compile-time check that TemplateRenderer implements Renderer.
var _ Renderer = (*TemplateRenderer)(nil)
