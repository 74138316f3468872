// Package dag defines the deterministic dependency model for check suites.
//
// It is intentionally split into:
//   - Immutable graph definition (CheckGraph): checks + needs structure + stable GraphHash
//   - Mutable execution state (ExecutionState): runtime statuses per check
//
// The graph identity (GraphHash) is computed from check definition content and
// canonicalized edge structure, making it invariant to insertion order.
package dag
