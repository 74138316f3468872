package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"checkrun/internal/dag"
)

var (
	passMarker   = color.New(color.FgGreen).SprintFunc()
	failMarker   = color.New(color.FgRed).SprintFunc()
	skipMarker   = color.New(color.FgYellow).SprintFunc()
	cachedMarker = color.New(color.FgCyan).SprintFunc()
)

// ReplayOutput writes each check's captured tool output to the given writers
// in canonical suite order.
//
// Output is replayed after execution instead of streamed, so parallel runs
// never interleave diagnostics from different tools. Skipped and empty checks
// produced no output and are omitted.
func ReplayOutput(stdout, stderr io.Writer, order []string, res *dag.GraphResult) error {
	if res == nil {
		return fmt.Errorf("nil graph result")
	}
	for _, name := range order {
		nodeRes := res.Results[name]
		if nodeRes == nil {
			continue
		}
		if len(nodeRes.Stdout) > 0 {
			if _, err := stdout.Write(nodeRes.Stdout); err != nil {
				return fmt.Errorf("replaying stdout for %q: %w", name, err)
			}
		}
		if len(nodeRes.Stderr) > 0 {
			if _, err := stderr.Write(nodeRes.Stderr); err != nil {
				return fmt.Errorf("replaying stderr for %q: %w", name, err)
			}
		}
	}
	return nil
}

// WriteSummary renders the per-check status table.
//
// Status coloring degrades to plain text automatically when the writer is not
// a terminal or NO_COLOR is set.
func WriteSummary(w io.Writer, order []string, res *dag.GraphResult) error {
	if res == nil {
		return fmt.Errorf("nil graph result")
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Check", "Status", "Exit", "Targets"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, name := range order {
		st := res.FinalState[name]
		nodeRes := res.Results[name]

		status := string(st)
		exit := "-"
		targets := "-"

		switch st {
		case dag.CheckPassed:
			if nodeRes != nil && nodeRes.Empty {
				status = skipMarker("EMPTY")
				break
			}
			status = passMarker("PASS")
			exit = "0"
		case dag.CheckCached:
			status = cachedMarker("CACHED")
			exit = "0"
		case dag.CheckFailed:
			status = failMarker("FAIL")
			if nodeRes != nil {
				exit = fmt.Sprintf("%d", nodeRes.ExitCode)
			}
		case dag.CheckSkipped:
			status = skipMarker("SKIP")
		}

		if nodeRes != nil && len(nodeRes.Targets) > 0 {
			targets = fmt.Sprintf("%d", len(nodeRes.Targets))
		}

		table.Append([]string{name, status, exit, targets})
	}

	table.Render()
	return nil
}
