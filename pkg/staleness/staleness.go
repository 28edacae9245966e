// Package staleness decides whether a job's output is current with respect
// to its data and template files.
//
// Classification uses exactly three modification times (output, data,
// template) read fresh on every call. Nothing is cached or persisted.
package staleness

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/3leaps/ttgen/pkg/builderr"
	"github.com/3leaps/ttgen/pkg/job"
)

// Status is the build necessity of a job.
type Status int

const (
	// UpToDate means the output exists and is not older than either input.
	UpToDate Status = iota

	// FileMissing means the output does not exist.
	FileMissing

	// OutOfDate means the output is strictly older than the template or data.
	OutOfDate

	// CannotDetermine means a modification time could not be read.
	CannotDetermine
)

func (s Status) String() string {
	switch s {
	case UpToDate:
		return "up to date"
	case FileMissing:
		return "file missing"
	case OutOfDate:
		return "out of date"
	case CannotDetermine:
		return "cannot determine"
	default:
		return "unknown"
	}
}

// Result is a classification and, for CannotDetermine, the failure behind it.
type Result struct {
	Status Status
	Err    error
}

// NeedsBuild reports whether the result requires a rebuild. Every status
// other than UpToDate does, including CannotDetermine.
func (r Result) NeedsBuild() bool {
	return r.Status != UpToDate
}

// StatFunc reads file metadata. os.Stat is the production implementation.
type StatFunc func(name string) (fs.FileInfo, error)

// Oracle classifies jobs. The zero value uses os.Stat.
//
// Oracle is read-only and safe for concurrent use.
type Oracle struct {
	stat StatFunc
}

// NewOracle returns an Oracle reading metadata through stat.
// A nil stat selects os.Stat.
func NewOracle(stat StatFunc) *Oracle {
	return &Oracle{stat: stat}
}

var defaultOracle = &Oracle{}

// Classify classifies j using the filesystem.
func Classify(j *job.Job) Result {
	return defaultOracle.Classify(j)
}

// ShouldBuild reports whether j needs to be (re)built.
func ShouldBuild(j *job.Job) bool {
	return defaultOracle.ShouldBuild(j)
}

// ShouldBuild reports whether j needs to be (re)built.
func (o *Oracle) ShouldBuild(j *job.Job) bool {
	return o.Classify(j).NeedsBuild()
}

// Classify classifies j.
//
// The output's existence is checked first; then the modification times of
// output, data and template are read in that order, stopping at the first
// failure.
func (o *Oracle) Classify(j *job.Job) Result {
	outInfo, err := o.statFn()(j.Output)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Status: FileMissing}
		}
		return cannotDetermine(j.Output, err)
	}
	outMod := outInfo.ModTime()

	dataMod, err := o.modTime(j.Data)
	if err != nil {
		return cannotDetermine(j.Data, err)
	}

	tmplMod, err := o.modTime(j.Template)
	if err != nil {
		return cannotDetermine(j.Template, err)
	}

	if outMod.Before(tmplMod) || outMod.Before(dataMod) {
		return Result{Status: OutOfDate}
	}
	return Result{Status: UpToDate}
}

func (o *Oracle) modTime(path string) (time.Time, error) {
	info, err := o.statFn()(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (o *Oracle) statFn() StatFunc {
	if o == nil || o.stat == nil {
		return os.Stat
	}
	return o.stat
}

func cannotDetermine(path string, err error) Result {
	return Result{
		Status: CannotDetermine,
		Err:    &builderr.IOError{Op: "stat", Path: path, Err: err},
	}
}
