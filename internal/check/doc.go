// Package check provides the domain models and execution engine for running
// static-analysis checks against a project tree.
//
// # Design Principles
//
//  1. Target resolution is deterministic: glob expansion is strictly sorted
//     and independent of the directory the runner was launched from.
//  2. Check identity is content-based: the result cache is keyed on resolved
//     target contents, the tool, its arguments, and environment overrides,
//     never on timestamps or machine-specific metadata.
//  3. Tool failures are data, not errors: a non-zero exit code is a valid,
//     cacheable result. Go errors are reserved for infrastructure failures
//     (tool missing, unreadable targets, cache I/O).
//
// # Core Types
//
// Check: a declarative definition of one analysis tool invocation.
// Target: a resolved file whose content contributes to check identity.
// Runner: orchestrates resolve → hash → cache probe → execute → store.
package check
