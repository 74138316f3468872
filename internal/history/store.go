// Package history persists the outcome of the most recent suite run so a
// later invocation can rerun only what failed.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"checkrun/internal/dag"
)

// Outcome is the recorded terminal status of one check.
type Outcome struct {
	Status   dag.NodeState `json:"status"`
	ExitCode int           `json:"exit_code"`
}

// LastRun is the persisted record of the previous run.
//
// SuiteHash pins the record to a specific suite definition; a record written
// under a different suite must not drive a failure-only rerun.
type LastRun struct {
	SuiteHash string             `json:"suite_hash"`
	Outcomes  map[string]Outcome `json:"outcomes"`
}

// Store provides persistent storage for run history under:
//
//	<root>/.checkrun/last_run.json
//
// Writes are atomic (temp file + sync + rename), matching the cache layer, so
// an interrupted run never leaves a torn record.
type Store struct {
	root string
}

// NewStore creates a Store for the given project root.
func NewStore(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root is required")
	}
	return &Store{root: root}, nil
}

func (s *Store) dir() string {
	return filepath.Join(s.root, ".checkrun")
}

func (s *Store) path() string {
	return filepath.Join(s.dir(), "last_run.json")
}

// Load reads the previous run record, or nil if none exists.
func (s *Store) Load() (*LastRun, error) {
	if s == nil {
		return nil, errors.New("nil Store")
	}
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading run history: %w", err)
	}
	var run LastRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decoding run history: %w", err)
	}
	return &run, nil
}

// Save atomically replaces the previous run record.
func (s *Store) Save(run *LastRun) error {
	if s == nil {
		return errors.New("nil Store")
	}
	if run == nil {
		return errors.New("nil run")
	}
	if run.SuiteHash == "" {
		return errors.New("suite hash is required")
	}

	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run history: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir(), ".last_run-*")
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing run history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing run history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing run history: %w", err)
	}

	if err := os.Rename(tmpName, s.path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing run history: %w", err)
	}
	return nil
}

// Update folds an executor result into the run record.
//
// Outcomes from a previous record under the same suite hash are carried over
// for checks outside this run's selection, so a failure-only rerun that
// passes clears the failure without forgetting the rest of the suite.
func (s *Store) Update(suiteHash string, res *dag.GraphResult) error {
	if res == nil {
		return errors.New("nil graph result")
	}

	run := &LastRun{SuiteHash: suiteHash, Outcomes: make(map[string]Outcome, len(res.FinalState))}

	if prev, err := s.Load(); err == nil && prev != nil && prev.SuiteHash == suiteHash {
		for name, out := range prev.Outcomes {
			run.Outcomes[name] = out
		}
	}

	for name, st := range res.FinalState {
		out := Outcome{Status: st}
		if nodeRes := res.Results[name]; nodeRes != nil {
			out.ExitCode = nodeRes.ExitCode
		}
		run.Outcomes[name] = out
	}

	return s.Save(run)
}
