// Package batch loads ttgen batch specifications: the list of jobs run by
// multigen, clean and report.
//
// The canonical format is a JSON array:
//
//	[{"name":"doc","data":"doc.json","template":"doc.tmpl","output":"doc.rst"}]
//
// The same list may be written as YAML (.yaml/.yml) or as HCL (.hcl) using
// one labelled block per job:
//
//	job "doc" {
//	  data     = "doc.json"
//	  template = "doc.tmpl"
//	  output   = "${env.OUT_DIR}/doc.rst"
//	}
//
// HCL expressions may reference process environment variables through the
// "env" object. Every format is validated against the embedded JSON schema,
// and a batch declaring the same output file twice is rejected.
package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/ttgen/pkg/builderr"
	"github.com/3leaps/ttgen/pkg/job"
)

// ErrEmpty is returned for a zero-length batch file.
var ErrEmpty = errors.New("batch specification is empty")

// Load reads and validates a batch specification from path.
//
// The format is chosen by extension: .json, .yaml/.yml or .hcl. Unknown
// extensions are tried as JSON first, then YAML.
//
// Read failures are returned as *builderr.IOError; decoding and validation
// failures as *builderr.ParseError.
func Load(path string) ([]*job.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &builderr.IOError{Op: "read", Path: path, Err: err}
	}
	return LoadFromBytes(data, path)
}

// LoadFromReader reads and validates a batch specification from r.
//
// The path parameter is used for error messages and format detection.
func LoadFromReader(r io.Reader, path string) ([]*job.Job, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &builderr.IOError{Op: "read", Path: path, Err: err}
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes decodes and validates a batch specification.
//
// The raw document is converted to JSON and checked against the schema
// before it is decoded into jobs, so unknown fields are rejected rather than
// silently dropped.
func LoadFromBytes(data []byte, path string) ([]*job.Job, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, &builderr.ParseError{Path: path, Err: ErrEmpty}
	}

	format, jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}

	if err := ValidateRaw(jsonData); err != nil {
		return nil, &builderr.ParseError{Path: path, Format: "schema", Err: err}
	}

	var jobs []*job.Job
	if err := json.Unmarshal(jsonData, &jobs); err != nil {
		return nil, &builderr.ParseError{Path: path, Format: format, Err: err}
	}

	if err := CheckDuplicateOutputs(jobs); err != nil {
		return nil, &builderr.ParseError{Path: path, Format: format, Err: err}
	}

	return jobs, nil
}

// toJSON converts the input to JSON and reports the format it was read as.
func toJSON(data []byte, path string) (string, []byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		out, err := checkJSON(data, path)
		return "json", out, err
	case ".yaml", ".yml":
		out, err := yamlToJSON(data, path)
		return "yaml", out, err
	case ".hcl":
		out, err := hclToJSON(data, path)
		return "hcl", out, err
	default:
		if out, err := checkJSON(data, path); err == nil {
			return "json", out, nil
		}
		out, err := yamlToJSON(data, path)
		if err != nil {
			return "", nil, &builderr.ParseError{
				Path: path,
				Err:  fmt.Errorf("failed to parse batch specification (tried JSON and YAML): %w", errors.Unwrap(err)),
			}
		}
		return "yaml", out, nil
	}
}

func checkJSON(data []byte, path string) ([]byte, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &builderr.ParseError{Path: path, Format: "json", Err: err}
	}
	return data, nil
}

func yamlToJSON(data []byte, path string) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &builderr.ParseError{Path: path, Format: "yaml", Err: err}
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, &builderr.ParseError{Path: path, Format: "yaml", Err: err}
	}
	return out, nil
}

// hclSpec is the HCL shape of a batch specification.
type hclSpec struct {
	Jobs []hclJob `hcl:"job,block"`
}

type hclJob struct {
	Name     string `hcl:"name,label"`
	Data     string `hcl:"data"`
	Template string `hcl:"template"`
	Output   string `hcl:"output"`
}

func hclToJSON(data []byte, path string) ([]byte, error) {
	filename := path
	if filepath.Ext(filename) != ".hcl" {
		filename += ".hcl"
	}

	var spec hclSpec
	if err := hclsimple.Decode(filename, data, evalContext(), &spec); err != nil {
		return nil, &builderr.ParseError{Path: path, Format: "hcl", Err: err}
	}

	jobs := make([]job.Job, 0, len(spec.Jobs))
	for _, j := range spec.Jobs {
		jobs = append(jobs, job.Job{Name: j.Name, Data: j.Data, Template: j.Template, Output: j.Output})
	}
	out, err := json.Marshal(jobs)
	if err != nil {
		return nil, &builderr.ParseError{Path: path, Format: "hcl", Err: err}
	}
	return out, nil
}

// evalContext exposes the process environment to HCL expressions as "env".
func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}
