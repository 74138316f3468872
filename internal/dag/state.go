package dag

// NodeState is the runtime execution state of a node.
//
// This is intentionally separated from CheckGraph, which is immutable, so the
// same graph can be executed multiple times.
type NodeState string

const (
	CheckPending NodeState = "PENDING"
	CheckRunning NodeState = "RUNNING"
	CheckPassed  NodeState = "PASSED"
	CheckFailed  NodeState = "FAILED"
	CheckSkipped NodeState = "SKIPPED"
	CheckCached  NodeState = "CACHED"
)

// ExecutionState maps check name to its current NodeState.
//
// It is intentionally a plain map so the scheduler can remain a pure function
// without coupling to an executor implementation.
type ExecutionState map[string]NodeState
