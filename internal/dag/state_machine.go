package dag

import (
	"container/heap"
	"fmt"
)

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s NodeState) bool {
	switch s {
	case CheckPassed, CheckFailed, CheckSkipped, CheckCached:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the state satisfies dependents.
//
// A cached result only satisfies dependents if its replayed exit code was
// zero; the executor commits non-zero cache hits as FAILED, so CACHED here
// always means a passing replay.
func IsSuccessful(s NodeState) bool {
	switch s {
	case CheckPassed, CheckCached:
		return true
	default:
		return false
	}
}

// Transition performs an atomic validated transition for a single check.
//
// The caller supplies the expected prior state (from) to make races
// observable. The state map is mutated if and only if the transition is valid.
func Transition(state ExecutionState, name string, from, to NodeState) error {
	cur, ok := state[name]
	if !ok {
		return fmt.Errorf("unknown check in state: %q", name)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", name, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", name, from, to)
	}
	state[name] = to
	return nil
}

func isAllowedTransition(from, to NodeState) bool {
	switch from {
	case CheckPending:
		return to == CheckRunning || to == CheckCached || to == CheckSkipped || to == CheckFailed
	case CheckRunning:
		return to == CheckPassed || to == CheckFailed
	default:
		return false
	}
}

// FailAndPropagate transitions name to FAILED and immediately and
// transitively marks all downstream dependents as SKIPPED.
//
// Determinism:
//   - The set of nodes marked SKIPPED is defined purely by reachability.
//   - Traversal is in deterministic canonical index order.
//
// Safety:
//   - A downstream node that is already RUNNING indicates a missing
//     synchronization bug and is treated as an invariant violation.
func FailAndPropagate(g *CheckGraph, state ExecutionState, name string) error {
	if g == nil {
		return fmt.Errorf("nil graph")
	}
	node, ok := g.nodesByName[name]
	if !ok {
		return fmt.Errorf("unknown check: %q", name)
	}

	cur, ok := state[name]
	if !ok {
		return fmt.Errorf("unknown check in state: %q", name)
	}
	switch cur {
	case CheckRunning, CheckPending:
		state[name] = CheckFailed
	case CheckFailed:
		// already committed
	default:
		return fmt.Errorf("cannot fail %q from state %s", name, cur)
	}

	start := node.canonicalIndex
	visited := make([]bool, len(g.nodes))
	visited[start] = true

	hq := &intMinHeap{}
	heap.Init(hq)
	for _, d := range g.outgoing[start] {
		heap.Push(hq, d)
	}

	for hq.Len() > 0 {
		u := heap.Pop(hq).(int)
		if visited[u] {
			continue
		}
		visited[u] = true

		uname := g.nodes[u].Name
		st, ok := state[uname]
		if !ok {
			return fmt.Errorf("unknown check in state: %q", uname)
		}
		switch st {
		case CheckPending:
			state[uname] = CheckSkipped
		case CheckRunning:
			return fmt.Errorf("downstream check %q is RUNNING while upstream %q failed", uname, name)
		default:
			// terminal already; leave as-is
		}

		for _, d := range g.outgoing[u] {
			if !visited[d] {
				heap.Push(hq, d)
			}
		}
	}

	return nil
}
