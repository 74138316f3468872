package dag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"checkrun/internal/check"
)

// CheckRunner executes a single check.
//
// A non-zero exit code is reported through NodeResult; a non-nil error
// indicates an infrastructure failure (tool missing, unreadable targets,
// cache I/O) and aborts the whole run.
type CheckRunner interface {
	// Probe checks whether the check can be satisfied from cache.
	// If cached is true, result must be non-nil and FromCache must be true.
	Probe(ctx context.Context, chk check.Check) (result *NodeResult, cached bool, err error)

	Run(ctx context.Context, chk check.Check) (*NodeResult, error)
}

// Executor executes a CheckGraph deterministically.
type Executor struct {
	Graph  *CheckGraph
	Runner CheckRunner

	mu    sync.Mutex
	state ExecutionState
}

// NewExecutor creates an executor with all nodes initialized to PENDING.
func NewExecutor(g *CheckGraph, runner CheckRunner) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if runner == nil {
		return nil, fmt.Errorf("nil runner")
	}

	state := make(ExecutionState, len(g.nodes))
	for _, n := range g.nodes {
		state[n.Name] = CheckPending
	}

	return &Executor{Graph: g, Runner: runner, state: state}, nil
}

// StateSnapshot returns a copy of the current execution state.
func (e *Executor) StateSnapshot() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp := make(ExecutionState, len(e.state))
	for k, v := range e.state {
		cp[k] = v
	}
	return cp
}

// commitCached records a cache hit while the node is still PENDING.
// A replayed failure commits FAILED and propagates skips like a live failure.
func (e *Executor) commitCached(name string, res *NodeResult, results map[string]*NodeResult) error {
	results[name] = res
	if res.ExitCode == 0 {
		return Transition(e.state, name, CheckPending, CheckCached)
	}
	return FailAndPropagate(e.Graph, e.state, name)
}

// commitExecuted records a completed execution for a RUNNING node.
func (e *Executor) commitExecuted(name string, res *NodeResult, results map[string]*NodeResult) error {
	results[name] = res
	if res.ExitCode == 0 {
		return Transition(e.state, name, CheckRunning, CheckPassed)
	}
	return FailAndPropagate(e.Graph, e.state, name)
}

func (e *Executor) finalResult(order []string, results map[string]*NodeResult) *GraphResult {
	return &GraphResult{
		GraphHash:      e.Graph.Hash(),
		FinalState:     e.StateSnapshot(),
		ExecutionOrder: order,
		Results:        results,
	}
}

// RunSerial executes the graph one check at a time.
//
// Determinism:
//   - The scheduler is polled deterministically.
//   - The next check chosen is always the first element of the scheduler's
//     ordered list.
func (e *Executor) RunSerial(ctx context.Context) (*GraphResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	order := make([]string, 0, len(e.Graph.nodes))
	results := make(map[string]*NodeResult, len(e.Graph.nodes))

	for {
		e.mu.Lock()
		ready := GetReadyChecks(e.Graph, e.state)

		if len(ready) == 0 {
			// No runnable checks: either finished, or deadlocked on
			// inconsistent state.
			allTerminal := true
			for _, st := range e.state {
				if !IsTerminal(st) {
					allTerminal = false
					break
				}
			}
			e.mu.Unlock()

			if allTerminal {
				return e.finalResult(order, results), nil
			}
			return nil, fmt.Errorf("no ready checks but graph not finished")
		}

		next := ready[0]
		chk := e.Graph.nodesByName[next].Check

		probeRes, cached, err := e.Runner.Probe(ctx, chk)
		if err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("probing cache for %q: %w", next, err)
		}
		if cached {
			if probeRes == nil {
				e.mu.Unlock()
				return nil, fmt.Errorf("probing cache for %q: nil result", next)
			}
			if err := e.commitCached(next, probeRes, results); err != nil {
				e.mu.Unlock()
				return nil, err
			}
			e.mu.Unlock()
			continue
		}

		if err := Transition(e.state, next, CheckPending, CheckRunning); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		order = append(order, next)
		e.mu.Unlock()

		// Execute outside the lock.
		runRes, err := e.Runner.Run(ctx, chk)
		if err != nil {
			return nil, fmt.Errorf("executing %q: %w", next, err)
		}
		if runRes == nil {
			return nil, fmt.Errorf("executing %q: nil result", next)
		}

		e.mu.Lock()
		if err := e.commitExecuted(next, runRes, results); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		e.mu.Unlock()
	}
}

// RunParallel executes the graph with up to jobs checks in flight.
//
// Determinism strategy:
//   - Depth-staged dispatch: checks are dispatched in increasing topological
//     depth, and a depth stage completes before the next begins.
//   - Within the same depth: lexical order by check name.
//   - Results are committed in dispatch order after the stage finishes, so
//     final state and recorded results never depend on goroutine timing.
//
// The errgroup bounds concurrency and cancels the stage's context on the
// first infrastructure error, killing in-flight tool processes.
func (e *Executor) RunParallel(ctx context.Context, jobs int) (*GraphResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobs <= 0 {
		return nil, fmt.Errorf("jobs must be > 0")
	}

	maxDepth := 0
	for _, d := range e.Graph.depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	byDepth := make([][]string, maxDepth+1)
	for _, n := range e.Graph.nodes {
		d := e.Graph.depth[n.canonicalIndex]
		byDepth[d] = append(byDepth[d], n.Name)
	}
	for d := range byDepth {
		sort.Strings(byDepth[d])
	}

	order := make([]string, 0, len(e.Graph.nodes))
	results := make(map[string]*NodeResult, len(e.Graph.nodes))

	for depth := 0; depth <= maxDepth; depth++ {
		// Probe phase: sequential, under lock. Cache hits and skips commit
		// immediately; the rest transition to RUNNING.
		e.mu.Lock()
		var toRun []string
		for _, name := range byDepth[depth] {
			node := e.Graph.nodesByName[name]
			st := e.state[name]

			// Already terminal (e.g. skipped by an earlier failure).
			if IsTerminal(st) {
				continue
			}
			if st != CheckPending {
				e.mu.Unlock()
				return nil, fmt.Errorf("unexpected non-pending state for %q: %s", name, st)
			}

			depsOK := true
			for _, p := range e.Graph.incoming[node.canonicalIndex] {
				if !IsSuccessful(e.state[e.Graph.nodes[p].Name]) {
					depsOK = false
					break
				}
			}
			if !depsOK {
				e.mu.Unlock()
				return nil, fmt.Errorf("check %q at depth %d is pending but needs are not satisfied", name, depth)
			}

			res, cached, err := e.Runner.Probe(ctx, node.Check)
			if err != nil {
				e.mu.Unlock()
				return nil, fmt.Errorf("probing cache for %q: %w", name, err)
			}
			if cached {
				if res == nil {
					e.mu.Unlock()
					return nil, fmt.Errorf("probing cache for %q: nil result", name)
				}
				if err := e.commitCached(name, res, results); err != nil {
					e.mu.Unlock()
					return nil, err
				}
				continue
			}

			if err := Transition(e.state, name, CheckPending, CheckRunning); err != nil {
				e.mu.Unlock()
				return nil, err
			}
			order = append(order, name)
			toRun = append(toRun, name)
		}
		e.mu.Unlock()

		if len(toRun) == 0 {
			continue
		}

		// Run phase: bounded fan-out, results parked by index.
		staged := make([]*NodeResult, len(toRun))
		eg, egctx := errgroup.WithContext(ctx)
		eg.SetLimit(jobs)
		for i, name := range toRun {
			i, name := i, name
			chk := e.Graph.nodesByName[name].Check
			eg.Go(func() error {
				res, err := e.Runner.Run(egctx, chk)
				if err != nil {
					return fmt.Errorf("executing %q: %w", name, err)
				}
				if res == nil {
					return fmt.Errorf("executing %q: nil result", name)
				}
				staged[i] = res
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		// Commit phase: dispatch order, under lock.
		e.mu.Lock()
		for i, name := range toRun {
			if err := e.commitExecuted(name, staged[i], results); err != nil {
				e.mu.Unlock()
				return nil, err
			}
		}
		e.mu.Unlock()
	}

	return e.finalResult(order, results), nil
}
