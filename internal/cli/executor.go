package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"checkrun/internal/check"
	"checkrun/internal/dag"
	"checkrun/internal/history"
	"checkrun/internal/report"
	"checkrun/internal/suite"
)

// CLIResult carries the semantic exit code and, when execution happened, the
// executor's result.
type CLIResult struct {
	ExitCode int
	Result   *dag.GraphResult
}

// Execute runs a canonical invocation end to end.
//
// Responsibilities:
//   - Resolve the project root and suite before anything else; a root
//     failure is fatal with ExitRootFailure and no tool is ever invoked.
//   - Build and validate the check graph.
//   - Execute (serial or parallel), replay tool output in canonical order,
//     render the summary and persist run history.
//   - Translate outcomes to semantic exit codes; a failed check propagates
//     the tool's own exit code.
func Execute(ctx context.Context, inv Invocation, stdout, stderr io.Writer) (CLIResult, error) {
	res := CLIResult{ExitCode: ExitInternalError}

	workDir := inv.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			res.ExitCode = ExitRootFailure
			return res, fmt.Errorf("resolving working directory: %w", err)
		}
		workDir = wd
	}

	proj, err := suite.Resolve(workDir, inv.Root, inv.SuitePath)
	if err != nil {
		var rootErr *suite.RootError
		if errors.As(err, &rootErr) {
			res.ExitCode = ExitRootFailure
		} else {
			res.ExitCode = ExitSuiteError
		}
		return res, err
	}

	if inv.List {
		listSuite(stdout, proj)
		res.ExitCode = ExitSuccess
		return res, nil
	}

	selection := inv.Checks
	if inv.OnlyFailures {
		store, err := history.NewStore(proj.Root)
		if err != nil {
			return res, err
		}
		last, err := store.Load()
		if err != nil {
			res.ExitCode = ExitSuiteError
			return res, err
		}
		failed, err := history.FailedSet(last, proj.Suite.Hash())
		if err != nil {
			var notEligible *history.NotEligibleError
			if errors.As(err, &notEligible) {
				res.ExitCode = ExitInvalidInvocation
				return res, &InvocationError{ExitCode: ExitInvalidInvocation, Message: notEligible.Error()}
			}
			return res, err
		}
		if len(failed) == 0 {
			fmt.Fprintln(stderr, "previous run passed; nothing to rerun")
			res.ExitCode = ExitSuccess
			return res, nil
		}
		selection = failed
	}

	sub, err := proj.Suite.Select(selection)
	if err != nil {
		res.ExitCode = ExitInvalidInvocation
		return res, &InvocationError{ExitCode: ExitInvalidInvocation, Message: err.Error()}
	}

	graph, err := dag.FromChecks(sub.Checks)
	if err != nil {
		res.ExitCode = ExitSuiteError
		return res, err
	}

	var cache check.ResultCache
	if !inv.NoCache {
		cacheDir := inv.CacheDir
		if cacheDir == "" {
			cacheDir = filepath.Join(proj.Root, ".checkrun", "cache")
		} else if !filepath.IsAbs(cacheDir) {
			cacheDir = filepath.Join(workDir, cacheDir)
		}
		cache = check.NewFileCache(cacheDir)
	}

	engine, err := dag.NewEngineRunner(check.NewRunner(proj.Root, cache))
	if err != nil {
		return res, err
	}
	executor, err := dag.NewExecutor(graph, engine)
	if err != nil {
		return res, err
	}

	var graphRes *dag.GraphResult
	if inv.Jobs > 1 {
		graphRes, err = executor.RunParallel(ctx, inv.Jobs)
	} else {
		graphRes, err = executor.RunSerial(ctx)
	}
	if err != nil {
		var emptyErr *check.EmptyTargetsError
		if errors.As(err, &emptyErr) {
			res.ExitCode = ExitSuiteError
		} else {
			res.ExitCode = ExitInternalError
		}
		return res, err
	}
	res.Result = graphRes

	canonicalOrder := sub.Names()
	if err := report.ReplayOutput(stdout, stderr, canonicalOrder, graphRes); err != nil {
		return res, err
	}
	if err := report.WriteSummary(stderr, canonicalOrder, graphRes); err != nil {
		return res, err
	}

	if inv.ReportPath != "" {
		rep, err := report.FromGraphResult(graphRes)
		if err != nil {
			return res, err
		}
		reportPath := inv.ReportPath
		if !filepath.IsAbs(reportPath) {
			reportPath = filepath.Join(workDir, reportPath)
		}
		if err := rep.WriteFile(reportPath); err != nil {
			return res, err
		}
	}

	// History is best-effort: a read-only tree still runs checks.
	if store, err := history.NewStore(proj.Root); err == nil {
		if err := store.Update(proj.Suite.Hash(), graphRes); err != nil {
			fmt.Fprintf(stderr, "warning: recording run history: %v\n", err)
		}
	}

	res.ExitCode = exitCodeFor(canonicalOrder, graphRes)
	return res, nil
}

// exitCodeFor selects the overall exit code: 0 when everything passed,
// otherwise the tool exit code of the first failed check in canonical suite
// order.
func exitCodeFor(order []string, res *dag.GraphResult) int {
	if res.Passed() {
		return ExitSuccess
	}
	for _, name := range order {
		if res.FinalState[name] != dag.CheckFailed {
			continue
		}
		if nodeRes := res.Results[name]; nodeRes != nil && nodeRes.ExitCode != 0 {
			return nodeRes.ExitCode
		}
		return 1
	}
	// Only skipped checks without a failure would be an executor bug.
	return ExitInternalError
}

func listSuite(w io.Writer, proj suite.Project) {
	source := proj.SuitePath
	if source == "" {
		source = "(builtin default)"
	}
	fmt.Fprintf(w, "suite: %s\nroot: %s\n", source, proj.Root)
	for _, c := range proj.Suite.Checks {
		line := fmt.Sprintf("  %s: %s", c.Name, c.Tool)
		if len(c.Args) > 0 {
			line += " " + strings.Join(c.Args, " ")
		}
		line += " [" + strings.Join(c.Targets, ", ") + "]"
		if len(c.Needs) > 0 {
			line += " needs " + strings.Join(c.Needs, ", ")
		}
		fmt.Fprintln(w, line)
	}
}
