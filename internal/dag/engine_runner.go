package dag

import (
	"context"
	"fmt"

	"checkrun/internal/check"
)

// EngineRunner adapts check.Runner to the graph executor.
//
// It inherits determinism from check.Runner's hashing, target resolution and
// exact replay of cached results.
type EngineRunner struct {
	Runner *check.Runner
}

// NewEngineRunner wraps a check.Runner for graph execution.
func NewEngineRunner(r *check.Runner) (*EngineRunner, error) {
	if r == nil {
		return nil, fmt.Errorf("nil check runner")
	}
	return &EngineRunner{Runner: r}, nil
}

func (r *EngineRunner) Probe(ctx context.Context, chk check.Check) (*NodeResult, bool, error) {
	if r == nil || r.Runner == nil {
		return nil, false, fmt.Errorf("nil check runner")
	}
	res, cached, err := r.Runner.Probe(ctx, &chk)
	if err != nil {
		return nil, false, err
	}
	if !cached {
		return nil, false, nil
	}
	return toNodeResult(res), true, nil
}

func (r *EngineRunner) Run(ctx context.Context, chk check.Check) (*NodeResult, error) {
	if r == nil || r.Runner == nil {
		return nil, fmt.Errorf("nil check runner")
	}
	res, err := r.Runner.Run(ctx, &chk)
	if err != nil {
		return nil, err
	}
	return toNodeResult(res), nil
}

func toNodeResult(res *check.RunResult) *NodeResult {
	if res == nil {
		return nil
	}
	return &NodeResult{
		Hash:      res.Hash,
		Targets:   res.Targets,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		ExitCode:  res.ExitCode,
		FromCache: res.FromCache,
		Empty:     res.Empty,
	}
}
