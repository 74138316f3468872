package dag

// GraphResult is the deterministic summary of a graph execution attempt.
type GraphResult struct {
	GraphHash GraphHash

	// FinalState is the terminal state of each check by name.
	FinalState ExecutionState

	// ExecutionOrder is the ordered list of checks that were dispatched
	// (transitioned to RUNNING).
	ExecutionOrder []string

	// Results holds the per-check outcome (executed or replayed). Skipped
	// checks have no entry.
	Results map[string]*NodeResult
}

// Passed reports whether every check finished in a satisfying state.
func (r *GraphResult) Passed() bool {
	if r == nil {
		return false
	}
	for _, st := range r.FinalState {
		if !IsSuccessful(st) {
			return false
		}
	}
	return true
}
