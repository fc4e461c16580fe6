package errs

import (
	"fmt"
	"strings"
)

// PartialError aggregates per-file failures from a sync pass. One bad file
// must never block the rest of the pass, so individual failures accumulate
// here while the counts of what succeeded remain intact on the result.
type PartialError struct {
	// Failures maps the repository-relative path to the error it produced.
	Failures map[string]error
}

// NewPartialError returns an empty PartialError ready to accumulate into.
func NewPartialError() *PartialError {
	return &PartialError{Failures: make(map[string]error)}
}

// Add records a failure for the given path.
func (p *PartialError) Add(path string, err error) {
	p.Failures[path] = err
}

// Len returns the number of recorded failures.
func (p *PartialError) Len() int {
	return len(p.Failures)
}

// OrNil returns the PartialError itself when it holds at least one
// failure, and nil otherwise, so callers can return it directly.
func (p *PartialError) OrNil() error {
	if p == nil || len(p.Failures) == 0 {
		return nil
	}
	return p
}

// Error summarizes the failures, one path per clause.
func (p *PartialError) Error() string {
	if len(p.Failures) == 0 {
		return "no failures"
	}

	parts := make([]string, 0, len(p.Failures))
	for path, err := range p.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", path, err))
	}

	return fmt.Sprintf("%d file(s) failed: %s", len(p.Failures), strings.Join(parts, "; "))
}
