// Package job defines the unit of work for ttgen: one data file rendered
// through one template into one output file.
package job

import (
	"errors"
	"io/fs"
	"os"

	"github.com/3leaps/ttgen/pkg/builderr"
)

// StdoutOutput is the output path that selects standard output.
const StdoutOutput = "-"

// Job identifies one generation unit.
//
// Paths are used as declared; relative paths resolve against the process
// working directory. A Job is a value and is never mutated after
// construction.
type Job struct {
	// Name is a human-readable label. Uniqueness is not enforced.
	Name string `json:"name" yaml:"name"`

	// Data is the path to the JSON input file.
	Data string `json:"data" yaml:"data"`

	// Template is the path to the template file.
	Template string `json:"template" yaml:"template"`

	// Output is the path to the artifact to produce or remove.
	Output string `json:"output" yaml:"output"`
}

// New constructs a Job and confirms its data and template files exist.
//
// On failure the returned error is a *builderr.MissingFilesError naming
// every missing input.
func New(name, data, template, output string) (*Job, error) {
	j := &Job{Name: name, Data: data, Template: template, Output: output}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// Validate checks that the data and template files exist. The output is
// not checked; it is expected to be absent or stale.
//
// All missing paths are reported together in one *builderr.MissingFilesError.
func (j *Job) Validate() error {
	var missing []builderr.MissingPath
	if !exists(j.Data) {
		missing = append(missing, builderr.MissingPath{Role: "data", Path: j.Data})
	}
	if !exists(j.Template) {
		missing = append(missing, builderr.MissingPath{Role: "template", Path: j.Template})
	}
	if len(missing) > 0 {
		return &builderr.MissingFilesError{Paths: missing}
	}
	return nil
}

// WritesStdout reports whether the job output targets standard output.
func (j *Job) WritesStdout() bool {
	return j.Output == "" || j.Output == StdoutOutput
}

// String returns the job name, or the output path for anonymous jobs.
func (j *Job) String() string {
	if j.Name != "" {
		return j.Name
	}
	return j.Output
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
