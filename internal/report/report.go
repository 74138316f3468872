// Package report produces the canonical record and the terminal rendering of
// a suite run.
//
// The RunReport is observational only: it is derived from the executor's
// final result and must never affect execution behavior.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"checkrun/internal/dag"
)

// EventKind is the stable, canonical discriminator for report events.
//
// The string values are part of the report's canonical bytes; do not rename.
type EventKind string

const (
	EventCheckPassed  EventKind = "CheckPassed"
	EventCheckFailed  EventKind = "CheckFailed"
	EventCheckCached  EventKind = "CheckCached"
	EventCheckSkipped EventKind = "CheckSkipped"
	EventCheckEmpty   EventKind = "CheckEmpty"
)

// kindRank fixes the ordering of kinds for events of the same check.
var kindRank = map[EventKind]int{
	EventCheckPassed:  0,
	EventCheckFailed:  1,
	EventCheckCached:  2,
	EventCheckSkipped: 3,
	EventCheckEmpty:   4,
}

// Event is a single logical outcome in a run.
//
// Determinism constraints:
//   - No timestamps.
//   - No error strings or stack traces.
//   - No fields derived from pointer identity or map iteration.
type Event struct {
	Kind EventKind `json:"kind"`

	// Check identifies the check this event refers to.
	Check string `json:"check"`

	// ExitCode is the tool's exit code for passed/failed/cached outcomes.
	ExitCode int `json:"exitCode"`

	// Reason is a stable, logical reason code (e.g. "UpstreamFailed",
	// "NoTargets"). Optional.
	Reason string `json:"reason,omitempty"`

	// Targets is the resolved root-relative target list for executed checks.
	Targets []string `json:"targets,omitempty"`
}

// RunReport is the canonical, deterministic record of a suite run.
//
// Invariants:
//   - Captures the GraphHash and an ordered list of events.
//   - Contains logical outcomes, not runtime details.
//   - Byte-for-byte stable: two identical runs serialize identically.
type RunReport struct {
	GraphHash string  `json:"graphHash"`
	Events    []Event `json:"events"`
}

// FromGraphResult derives the report from an executor result.
//
// Every check in the final state produces exactly one event. The report is
// returned canonicalized.
func FromGraphResult(res *dag.GraphResult) (*RunReport, error) {
	if res == nil {
		return nil, errors.New("nil graph result")
	}

	r := &RunReport{GraphHash: res.GraphHash.String()}
	for name, st := range res.FinalState {
		nodeRes := res.Results[name]
		switch st {
		case dag.CheckPassed:
			if nodeRes != nil && nodeRes.Empty {
				r.Events = append(r.Events, Event{Kind: EventCheckEmpty, Check: name, Reason: "NoTargets"})
				continue
			}
			r.Events = append(r.Events, Event{Kind: EventCheckPassed, Check: name, Targets: targetsOf(nodeRes)})
		case dag.CheckCached:
			r.Events = append(r.Events, Event{Kind: EventCheckCached, Check: name, Targets: targetsOf(nodeRes)})
		case dag.CheckFailed:
			r.Events = append(r.Events, Event{
				Kind:     EventCheckFailed,
				Check:    name,
				ExitCode: exitCodeOf(nodeRes),
				Targets:  targetsOf(nodeRes),
			})
		case dag.CheckSkipped:
			r.Events = append(r.Events, Event{Kind: EventCheckSkipped, Check: name, Reason: "UpstreamFailed"})
		default:
			return nil, fmt.Errorf("non-terminal state %s for check %q", st, name)
		}
	}

	r.Canonicalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func targetsOf(res *dag.NodeResult) []string {
	if res == nil || len(res.Targets) == 0 {
		return nil
	}
	out := make([]string, len(res.Targets))
	copy(out, res.Targets)
	sort.Strings(out)
	return out
}

func exitCodeOf(res *dag.NodeResult) int {
	if res == nil {
		return 0
	}
	return res.ExitCode
}

// Canonicalize puts the report into its canonical form: events sorted by
// (check name, kind rank, reason), empty target slices normalized to nil.
// Consumers should treat the report as immutable afterwards.
func (r *RunReport) Canonicalize() {
	for i := range r.Events {
		if len(r.Events[i].Targets) == 0 {
			r.Events[i].Targets = nil
		} else {
			sort.Strings(r.Events[i].Targets)
		}
	}
	sort.SliceStable(r.Events, func(i, j int) bool {
		a, b := r.Events[i], r.Events[j]
		if a.Check != b.Check {
			return a.Check < b.Check
		}
		if kindRank[a.Kind] != kindRank[b.Kind] {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		return a.Reason < b.Reason
	})
}

// Validate checks basic invariants and returns a descriptive error.
func (r *RunReport) Validate() error {
	if r == nil {
		return errors.New("report is nil")
	}
	if r.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i, e := range r.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if _, known := kindRank[e.Kind]; !known {
			return fmt.Errorf("events[%d].kind %q is unknown", i, e.Kind)
		}
		if e.Check == "" {
			return fmt.Errorf("events[%d].check is required", i)
		}
		if e.Kind == EventCheckFailed && e.ExitCode == 0 {
			return fmt.Errorf("events[%d]: failed check %q with zero exit code", i, e.Check)
		}
	}
	return nil
}

// MarshalCanonical serializes the canonical report bytes.
func (r *RunReport) MarshalCanonical() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile writes the canonical report to path, creating parent directories
// as needed.
func (r *RunReport) WriteFile(path string) error {
	data, err := r.MarshalCanonical()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
