package history

import (
	"errors"
	"fmt"
	"sort"

	"checkrun/internal/dag"
)

// NotEligibleError explains why a failure-only rerun cannot proceed.
type NotEligibleError struct {
	Reason string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("failure-only rerun not eligible: %s", e.Reason)
}

// FailedSet returns the checks that should run in a failure-only rerun: those
// recorded FAILED or SKIPPED in the previous run, sorted lexicographically.
//
// Eligibility rules:
//   - A previous run record must exist.
//   - Its suite hash must match the current suite; an edited suite
//     invalidates the record.
//
// An empty returned set means the previous run fully passed.
func FailedSet(last *LastRun, suiteHash string) ([]string, error) {
	if last == nil {
		return nil, &NotEligibleError{Reason: "no previous run recorded"}
	}
	if suiteHash == "" {
		return nil, errors.New("suite hash is required")
	}
	if last.SuiteHash != suiteHash {
		return nil, &NotEligibleError{Reason: "suite changed since the previous run"}
	}

	var names []string
	for name, out := range last.Outcomes {
		switch out.Status {
		case dag.CheckFailed, dag.CheckSkipped:
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
