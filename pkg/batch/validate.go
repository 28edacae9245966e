package batch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/3leaps/ttgen/internal/assets/schemas"
	"github.com/3leaps/ttgen/pkg/job"
)

// SchemaID is the schema identifier for batch specifications.
const SchemaID = "ttgen/v1.0.0/batch-spec"

var (
	// ErrSchemaNotFound indicates the embedded schema is missing.
	ErrSchemaNotFound = errors.New("batch schema not found")

	// ErrValidationFailed indicates the specification failed schema validation.
	ErrValidationFailed = errors.New("batch validation failed")

	// ErrDuplicateOutput indicates two jobs declare the same output file.
	ErrDuplicateOutput = errors.New("duplicate output path")
)

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// ValidationError represents a single schema violation.
type ValidationError struct {
	// Path is the JSON pointer to the offending value (e.g., "/0/template").
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every schema violation of a document.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "batch validation failed with %d errors:\n", len(e))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// ValidateRaw checks raw JSON against the batch schema.
//
// Returns nil on success, or ValidationErrors describing every failure.
func ValidateRaw(jsonData []byte) error {
	v, err := getValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{Path: d.Pointer, Message: d.Message})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func getValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		if len(schemasassets.BatchSpecSchema) == 0 {
			validatorErr = fmt.Errorf("%w: embedded batch-spec schema is empty", ErrSchemaNotFound)
			return
		}
		validator, validatorErr = schema.NewValidator(schemasassets.BatchSpecSchema)
		if validatorErr != nil {
			validatorErr = fmt.Errorf("failed to compile batch schema: %w", validatorErr)
		}
	})
	return validator, validatorErr
}

// DuplicateOutputError names the jobs that share one output file.
type DuplicateOutputError struct {
	Output string
	Jobs   []string
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("%s: %s declared by jobs %s", ErrDuplicateOutput, e.Output, strings.Join(e.Jobs, ", "))
}

func (e *DuplicateOutputError) Unwrap() error { return ErrDuplicateOutput }

// CheckDuplicateOutputs rejects batches in which two jobs write the same
// file. Outputs are compared as cleaned absolute paths; stdout outputs are
// exempt.
func CheckDuplicateOutputs(jobs []*job.Job) error {
	seen := make(map[string]int, len(jobs))
	for i, j := range jobs {
		if j.WritesStdout() {
			continue
		}
		key := filepath.Clean(j.Output)
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if prev, ok := seen[key]; ok {
			return &DuplicateOutputError{Output: j.Output, Jobs: []string{jobs[prev].String(), j.String()}}
		}
		seen[key] = i
	}
	return nil
}
