package dag

import "checkrun/internal/check"

// GraphHash is the deterministic identity of a CheckGraph.
//
// It is computed solely from check definition content and dependency
// structure. It is stable across different insertion orders of checks.
type GraphHash string

// String returns the string representation of the GraphHash.
func (h GraphHash) String() string { return string(h) }

// DefHash is the deterministic identity of a check definition as used by the
// graph model.
//
// This is intentionally distinct from check.ResultHash (execution/cache
// identity): graph identity is computed from the declarative definition only,
// never from target file contents.
type DefHash string

// String returns the string representation of the DefHash.
func (h DefHash) String() string { return string(h) }

// Edge represents a dependency relation: To needs From.
//
// A directed edge From -> To means To can only run after From passes.
type Edge struct {
	From string
	To   string
}

// Node is an immutable node in the CheckGraph.
type Node struct {
	Name           string
	Check          check.Check
	DefinitionHash DefHash
	canonicalIndex int
}

// CanonicalIndex returns the node's deterministic position in the graph's
// canonical ordering.
func (n *Node) CanonicalIndex() int { return n.canonicalIndex }

// NodeResult is the deterministic outcome of executing (or replaying) a
// single check.
//
// The executor uses it to commit the correct terminal state
// (PASSED/FAILED/CACHED) and to record stable per-check results in
// GraphResult.
type NodeResult struct {
	Hash check.ResultHash

	Targets  []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int

	FromCache bool
	Empty     bool
}
