package check

import (
	"context"
	"fmt"
	"strings"
)

// EmptyTargetsError reports that a check's target globs matched zero files
// and the check does not allow empty matches.
//
// Whether an unmatched glob is an error is the runner's decision, not the
// tool's: most analysis tools either error out or silently report success
// when given no files, and neither behavior is useful for a check suite.
type EmptyTargetsError struct {
	Check    string
	Patterns []string
}

func (e *EmptyTargetsError) Error() string {
	return fmt.Sprintf("check %q: no files match targets [%s] (set allow_empty to permit this)",
		e.Check, strings.Join(e.Patterns, ", "))
}

// RunResult contains the result of running one check.
type RunResult struct {
	// Hash is the computed ResultHash.
	Hash ResultHash

	// Targets is the resolved, sorted, root-relative target list.
	Targets []string

	// Stdout is the tool's standard output.
	Stdout []byte

	// Stderr is the tool's standard error.
	Stderr []byte

	// ExitCode is the tool's exit code, or 0 for an empty-allowed check.
	ExitCode int

	// FromCache indicates the result was replayed from the cache.
	FromCache bool

	// Empty indicates the target globs matched nothing and the check allows
	// that; the check counts as passed without invoking the tool.
	Empty bool
}

// Runner orchestrates check execution with result caching.
//
// The execution flow:
//  1. Validate the check.
//  2. Resolve target globs to a sorted TargetSet.
//  3. Compute the ResultHash.
//  4. Probe the cache; on a hit, replay without executing.
//  5. Execute the tool and store the result (success or failure alike).
//
// Cache is optional; with a nil Cache every check executes unconditionally.
type Runner struct {
	// Root is the project root checks execute against.
	Root string

	// Cache stores and replays check results. May be nil.
	Cache ResultCache

	// Executor runs check tools.
	Executor *Executor

	// Resolver expands target globs.
	Resolver *TargetResolver

	// Hasher computes cache identities.
	Hasher *Hasher
}

// NewRunner creates a Runner rooted at the given project directory.
func NewRunner(root string, cache ResultCache) *Runner {
	return &Runner{
		Root:     root,
		Cache:    cache,
		Executor: NewExecutor(root),
		Resolver: NewTargetResolver(root),
		Hasher:   NewHasher(),
	}
}

// Probe resolves and hashes the check, then consults the cache without
// executing anything. It reports whether a replayable result exists.
func (r *Runner) Probe(ctx context.Context, chk *Check) (*RunResult, bool, error) {
	if r.Cache == nil {
		return nil, false, nil
	}

	prep, err := r.prepare(chk)
	if err != nil {
		return nil, false, err
	}
	if prep.empty {
		// Empty-allowed checks are cheap enough to re-evaluate every run.
		return nil, false, nil
	}

	entry, err := r.Cache.Get(prep.hash)
	if err != nil {
		return nil, false, fmt.Errorf("probing cache: %w", err)
	}
	if entry == nil {
		return nil, false, nil
	}

	return &RunResult{
		Hash:      prep.hash,
		Targets:   prep.targets.Paths(),
		Stdout:    entry.Stdout,
		Stderr:    entry.Stderr,
		ExitCode:  entry.ExitCode,
		FromCache: true,
	}, true, nil
}

// Run executes a check or replays it from cache.
func (r *Runner) Run(ctx context.Context, chk *Check) (*RunResult, error) {
	prep, err := r.prepare(chk)
	if err != nil {
		return nil, err
	}

	if prep.empty {
		return &RunResult{Hash: prep.hash, Targets: []string{}, Empty: true}, nil
	}

	if r.Cache != nil {
		entry, err := r.Cache.Get(prep.hash)
		if err != nil {
			return nil, fmt.Errorf("checking cache: %w", err)
		}
		if entry != nil {
			return &RunResult{
				Hash:      prep.hash,
				Targets:   prep.targets.Paths(),
				Stdout:    entry.Stdout,
				Stderr:    entry.Stderr,
				ExitCode:  entry.ExitCode,
				FromCache: true,
			}, nil
		}
	}

	execResult, err := r.Executor.Execute(ctx, chk, prep.targets.Paths(), prep.hash)
	if err != nil {
		return nil, fmt.Errorf("executing check %q: %w", chk.Name, err)
	}

	if r.Cache != nil {
		entry := &CacheEntry{
			Hash:     prep.hash,
			Stdout:   execResult.Stdout,
			Stderr:   execResult.Stderr,
			ExitCode: execResult.ExitCode,
		}
		if err := r.Cache.Put(entry); err != nil {
			return nil, fmt.Errorf("caching result for %q: %w", chk.Name, err)
		}
	}

	return &RunResult{
		Hash:     prep.hash,
		Targets:  prep.targets.Paths(),
		Stdout:   execResult.Stdout,
		Stderr:   execResult.Stderr,
		ExitCode: execResult.ExitCode,
	}, nil
}

type preparedCheck struct {
	targets *TargetSet
	hash    ResultHash
	empty   bool
}

// prepare validates the check, resolves its targets and computes its hash.
func (r *Runner) prepare(chk *Check) (*preparedCheck, error) {
	if err := validateCheck(chk); err != nil {
		return nil, err
	}

	targets, err := r.Resolver.Resolve(chk.Targets)
	if err != nil {
		return nil, fmt.Errorf("resolving targets for %q: %w", chk.Name, err)
	}

	if len(targets.Targets) == 0 {
		if !chk.AllowEmpty {
			return nil, &EmptyTargetsError{Check: chk.Name, Patterns: chk.Targets}
		}
		return &preparedCheck{targets: targets, empty: true}, nil
	}

	hash := r.Hasher.ComputeHash(HashInput{
		Targets:    targets,
		Tool:       chk.Tool,
		Args:       chk.Args,
		Env:        chk.Env,
		AllowEmpty: chk.AllowEmpty,
	})

	return &preparedCheck{targets: targets, hash: hash}, nil
}

// validateCheck ensures the check is runnable.
func validateCheck(chk *Check) error {
	if chk == nil {
		return fmt.Errorf("check is nil")
	}
	if chk.Name == "" {
		return fmt.Errorf("check name is required")
	}
	if chk.Tool == "" {
		return fmt.Errorf("check %q: tool is required", chk.Name)
	}
	if len(chk.Targets) == 0 {
		return fmt.Errorf("check %q: at least one target is required", chk.Name)
	}
	return nil
}
