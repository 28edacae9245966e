package batch

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/ttgen/pkg/job"
)

// Select returns the jobs whose name or output path matches any of the
// doublestar patterns, preserving batch order. No patterns selects every job.
func Select(jobs []*job.Job, patterns []string) ([]*job.Job, error) {
	if len(patterns) == 0 {
		return jobs, nil
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid selection pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}

	selected := make([]*job.Job, 0, len(jobs))
	for _, j := range jobs {
		if matchesAny(j, patterns) {
			selected = append(selected, j)
		}
	}
	return selected, nil
}

func matchesAny(j *job.Job, patterns []string) bool {
	output := filepath.ToSlash(j.Output)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, j.Name); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, output); ok {
			return true
		}
	}
	return false
}
