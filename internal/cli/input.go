// Package cli maps command-line invocations onto the check engine and
// translates engine outcomes into semantic exit codes.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

const (
	ExitSuccess           = 0
	ExitRootFailure       = 1
	ExitInvalidInvocation = 2
	ExitSuiteError        = 3
	ExitInternalError     = 4
)

// Invocation is the canonicalized description of a run.
//
// WorkDir is the directory the invocation is interpreted from; when empty the
// process working directory applies. All relative paths resolve against it.
type Invocation struct {
	// SuitePath is an explicit suite file, "" for upward discovery.
	SuitePath string

	// Root overrides the project root, "" for discovery.
	Root string

	// Jobs is the maximum number of checks in flight. 1 means serial.
	Jobs int

	// ReportPath, when non-empty, receives the canonical JSON run report.
	ReportPath string

	// CacheDir overrides the result cache location
	// (default <root>/.checkrun/cache).
	CacheDir string

	// NoCache disables both cache probing and cache storage.
	NoCache bool

	// OnlyFailures reruns only the checks recorded FAILED or SKIPPED by the
	// previous run.
	OnlyFailures bool

	// List prints the effective suite instead of running it.
	List bool

	// Checks selects a subset of the suite by name; empty selects everything.
	Checks []string

	// WorkDir is set by tests to pin the invocation directory.
	WorkDir string
}

// InvocationError is a user-facing invocation problem with a semantic exit
// code attached.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ParseInvocation parses CLI flags into a canonical Invocation.
func ParseInvocation(args []string) (Invocation, error) {
	fs := flag.NewFlagSet("checkrun", flag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed

	var inv Invocation
	fs.StringVar(&inv.SuitePath, "suite", "", "Suite file path (default: discover checkrun.yaml upward).")
	fs.StringVar(&inv.Root, "root", "", "Project root override.")
	fs.IntVar(&inv.Jobs, "jobs", 1, "Maximum checks to run in parallel.")
	fs.StringVar(&inv.ReportPath, "report", "", "Write the canonical JSON run report to this path.")
	fs.StringVar(&inv.CacheDir, "cache-dir", "", "Result cache directory (default <root>/.checkrun/cache).")
	fs.BoolVar(&inv.NoCache, "no-cache", false, "Disable the result cache.")
	fs.BoolVar(&inv.OnlyFailures, "only-failures", false, "Rerun only checks that failed in the previous run.")
	fs.BoolVar(&inv.List, "list", false, "List the effective suite and exit.")

	if err := fs.Parse(args); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}

	inv.Checks = fs.Args()
	for _, name := range inv.Checks {
		if name == "" {
			return Invocation{}, invalidInvocationf("empty check name in selection")
		}
	}

	if inv.Jobs < 1 {
		return Invocation{}, invalidInvocationf("--jobs must be >= 1 (got %d)", inv.Jobs)
	}
	if inv.OnlyFailures && len(inv.Checks) > 0 {
		return Invocation{}, invalidInvocationf("--only-failures cannot be combined with an explicit check selection")
	}
	if inv.OnlyFailures && inv.List {
		return Invocation{}, invalidInvocationf("--only-failures cannot be combined with --list")
	}

	return inv, nil
}

// ExitCodeOf extracts a semantic exit code from an invocation error.
// An unrecognized error maps to ExitInternalError.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	return ExitInternalError
}
