package dag

import (
	"sort"
)

// GetReadyChecks returns the deterministically ordered list of check names
// that are eligible to run.
//
// Policy:
//   - A check is ready iff it is PENDING and all its needs are PASSED or CACHED.
//   - The returned list is sorted by (topological depth asc, check name asc).
//
// This function is pure: it does not mutate graph or state.
func GetReadyChecks(g *CheckGraph, state ExecutionState) []string {
	if g == nil {
		return nil
	}

	ready := make([]string, 0)
	for _, node := range g.nodes {
		st, ok := state[node.Name]
		if !ok || st != CheckPending {
			continue
		}

		idx := node.canonicalIndex
		depsOK := true
		for _, parentIdx := range g.incoming[idx] {
			parentName := g.nodes[parentIdx].Name
			pst, ok := state[parentName]
			if !ok || !IsSuccessful(pst) {
				depsOK = false
				break
			}
		}
		if depsOK {
			ready = append(ready, node.Name)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i], ready[j]
		ad, _ := g.Depth(a)
		bd, _ := g.Depth(b)
		if ad != bd {
			return ad < bd
		}
		return a < b
	})

	return ready
}
