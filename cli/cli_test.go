package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	icl "checkrun/internal/cli"
)

// installTool writes an executable shell script into a fresh bin directory and
// prepends that directory to PATH for the remainder of the test.
func installTool(t *testing.T, name, script string) {
	t.Helper()
	binDir := t.TempDir()
	path := filepath.Join(binDir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("installing tool %s: %v", name, err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

// run parses args, pins the invocation to workDir and executes it.
func run(t *testing.T, workDir string, args ...string) (icl.CLIResult, string, string, error) {
	t.Helper()
	inv, err := icl.ParseInvocation(args)
	if err != nil {
		return icl.CLIResult{ExitCode: icl.ExitCodeOf(err)}, "", "", err
	}
	inv.WorkDir = workDir
	var stdout, stderr bytes.Buffer
	res, err := icl.Execute(context.Background(), inv, &stdout, &stderr)
	return res, stdout.String(), stderr.String(), err
}

func TestDefaultSuite_RunsTypeCheckOverPythonTargets(t *testing.T) {
	proj := t.TempDir()
	argsFile := filepath.Join(t.TempDir(), "args.txt")
	installTool(t, "mypy", "#!/bin/sh\nprintf '%s\\n' \"$@\" > "+argsFile+"\nexit 0\n")

	writeFile(t, filepath.Join(proj, "a.py"), "x = 1\n")
	writeFile(t, filepath.Join(proj, "rplugin", "python3", "fm", "x.py"), "y = 2\n")

	res, _, _, err := run(t, proj, "--no-cache")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit = %d, want 0", res.ExitCode)
	}

	got := readFile(t, argsFile)
	want := "--ignore-missing-imports\na.py\nrplugin/python3/fm/x.py\n"
	if got != want {
		t.Errorf("tool argv:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestFailingTool_ExitCodePropagatedExactly(t *testing.T) {
	proj := t.TempDir()
	installTool(t, "failtool", "#!/bin/sh\necho 'a.py:1: error' >&2\nexit 7\n")

	writeFile(t, filepath.Join(proj, "checkrun.yaml"), `version: 1
checks:
  - name: broken
    tool: failtool
    targets: ["*.py"]
`)
	writeFile(t, filepath.Join(proj, "a.py"), "x = 1\n")

	res, _, stderr, err := run(t, proj, "--no-cache")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("exit = %d, want the tool's own code 7", res.ExitCode)
	}
	if !strings.Contains(stderr, "a.py:1: error") {
		t.Errorf("tool diagnostics not replayed:\n%s", stderr)
	}
}

func TestMissingRoot_FatalBeforeAnyToolRuns(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "invoked")
	installTool(t, "mypy", "#!/bin/sh\ntouch "+marker+"\nexit 0\n")

	res, _, _, err := run(t, t.TempDir(), "--root", "/nonexistent/project")
	if err == nil {
		t.Fatal("expected root resolution error")
	}
	if res.ExitCode != icl.ExitRootFailure {
		t.Errorf("exit = %d, want %d", res.ExitCode, icl.ExitRootFailure)
	}
	if _, statErr := os.Stat(marker); statErr == nil {
		t.Error("tool was invoked despite root failure")
	}
}

func TestCache_SecondIdenticalRunSkipsTool(t *testing.T) {
	proj := t.TempDir()
	countFile := filepath.Join(t.TempDir(), "count")
	installTool(t, "counter", "#!/bin/sh\necho x >> "+countFile+"\nexit 0\n")

	writeFile(t, filepath.Join(proj, "checkrun.yaml"), `version: 1
checks:
  - name: counted
    tool: counter
    targets: ["*.py"]
`)
	writeFile(t, filepath.Join(proj, "a.py"), "x = 1\n")

	for i := 0; i < 2; i++ {
		res, _, _, err := run(t, proj)
		if err != nil {
			t.Fatalf("run %d failed: %v", i+1, err)
		}
		if res.ExitCode != icl.ExitSuccess {
			t.Fatalf("run %d exit = %d", i+1, res.ExitCode)
		}
	}
	if got := readFile(t, countFile); got != "x\n" {
		t.Errorf("tool invoked %d times, want 1", strings.Count(got, "x"))
	}

	// Editing a target invalidates the cached result.
	writeFile(t, filepath.Join(proj, "a.py"), "x = 2\n")
	if res, _, _, err := run(t, proj); err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("run after edit: exit=%d err=%v", res.ExitCode, err)
	}
	if got := readFile(t, countFile); got != "x\nx\n" {
		t.Errorf("edit did not trigger re-execution: %q", got)
	}
}

func TestReport_IdenticalRunsIdenticalBytes(t *testing.T) {
	proj := t.TempDir()
	installTool(t, "oktool", "#!/bin/sh\nexit 0\n")

	writeFile(t, filepath.Join(proj, "checkrun.yaml"), `version: 1
checks:
  - name: quick
    tool: oktool
    targets: ["*.py"]
`)
	writeFile(t, filepath.Join(proj, "a.py"), "x = 1\n")

	reportPath := filepath.Join(proj, "report.json")
	args := []string{"--no-cache", "--report", reportPath}

	if res, _, _, err := run(t, proj, args...); err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("run1: exit=%d err=%v", res.ExitCode, err)
	}
	first := readFile(t, reportPath)

	if res, _, _, err := run(t, proj, args...); err != nil || res.ExitCode != icl.ExitSuccess {
		t.Fatalf("run2: exit=%d err=%v", res.ExitCode, err)
	}
	second := readFile(t, reportPath)

	if first != second {
		t.Errorf("report differs across identical runs:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(first, `"graphHash"`) {
		t.Errorf("report missing graph hash:\n%s", first)
	}
}

func TestList_PrintsSuiteWithoutRunningTools(t *testing.T) {
	proj := t.TempDir()
	marker := filepath.Join(t.TempDir(), "invoked")
	installTool(t, "listed", "#!/bin/sh\ntouch "+marker+"\nexit 0\n")

	writeFile(t, filepath.Join(proj, "checkrun.yaml"), `version: 1
checks:
  - name: first
    tool: listed
    targets: ["*.py"]
  - name: second
    tool: listed
    targets: ["*.txt"]
    needs: [first]
`)

	res, stdout, _, err := run(t, proj, "--list")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Fatalf("exit = %d", res.ExitCode)
	}
	for _, want := range []string{"first", "second", "needs first"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("listing missing %q:\n%s", want, stdout)
		}
	}
	if _, statErr := os.Stat(marker); statErr == nil {
		t.Error("tool was invoked by --list")
	}
}

func TestOnlyFailures_RerunsOnlyWhatFailed(t *testing.T) {
	proj := t.TempDir()
	modeFile := filepath.Join(t.TempDir(), "mode")
	countFile := filepath.Join(t.TempDir(), "count")
	installTool(t, "modal", "#!/bin/sh\nexit \"$(cat \"$MODE_FILE\")\"\n")
	installTool(t, "counter", "#!/bin/sh\necho x >> "+countFile+"\nexit 0\n")

	writeFile(t, filepath.Join(proj, "checkrun.yaml"), `version: 1
checks:
  - name: flaky
    tool: modal
    targets: ["*.py"]
    env:
      MODE_FILE: `+modeFile+`
  - name: steady
    tool: counter
    targets: ["*.py"]
`)
	writeFile(t, filepath.Join(proj, "a.py"), "x = 1\n")
	writeFile(t, modeFile, "5")

	res, _, _, err := run(t, proj, "--no-cache")
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if res.ExitCode != 5 {
		t.Fatalf("first run exit = %d, want 5", res.ExitCode)
	}
	if got := readFile(t, countFile); got != "x\n" {
		t.Fatalf("steady check should have run once: %q", got)
	}

	writeFile(t, modeFile, "0")
	res, _, _, err = run(t, proj, "--no-cache", "--only-failures")
	if err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Errorf("rerun exit = %d, want 0", res.ExitCode)
	}
	if got := readFile(t, countFile); got != "x\n" {
		t.Errorf("passing check was rerun: %q", got)
	}

	// The cleared failure is folded into history: nothing left to rerun.
	res, _, stderr, err := run(t, proj, "--no-cache", "--only-failures")
	if err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Errorf("third run exit = %d", res.ExitCode)
	}
	if !strings.Contains(stderr, "nothing to rerun") {
		t.Errorf("expected nothing-to-rerun notice, got:\n%s", stderr)
	}
}

func TestOnlyFailures_WithoutHistoryIsInvalid(t *testing.T) {
	proj := t.TempDir()
	writeFile(t, filepath.Join(proj, "checkrun.yaml"), `version: 1
checks:
  - name: quick
    tool: oktool
    targets: ["*.py"]
`)

	res, _, _, err := run(t, proj, "--only-failures")
	if err == nil {
		t.Fatal("expected eligibility error")
	}
	if res.ExitCode != icl.ExitInvalidInvocation {
		t.Errorf("exit = %d, want %d", res.ExitCode, icl.ExitInvalidInvocation)
	}
}

func TestParallel_SuitePasses(t *testing.T) {
	proj := t.TempDir()
	installTool(t, "oktool", "#!/bin/sh\nexit 0\n")

	writeFile(t, filepath.Join(proj, "checkrun.yaml"), `version: 1
checks:
  - name: one
    tool: oktool
    targets: ["*.py"]
  - name: two
    tool: oktool
    targets: ["*.py"]
  - name: both
    tool: oktool
    targets: ["*.py"]
    needs: [one, two]
`)
	writeFile(t, filepath.Join(proj, "a.py"), "x = 1\n")

	res, _, _, err := run(t, proj, "--no-cache", "--jobs", "3")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Errorf("exit = %d, want 0", res.ExitCode)
	}
}

func TestSelection_UnknownCheckRejected(t *testing.T) {
	proj := t.TempDir()
	writeFile(t, filepath.Join(proj, "checkrun.yaml"), `version: 1
checks:
  - name: quick
    tool: oktool
    targets: ["*.py"]
`)

	res, _, _, err := run(t, proj, "missing")
	if err == nil {
		t.Fatal("expected selection error")
	}
	if res.ExitCode != icl.ExitInvalidInvocation {
		t.Errorf("exit = %d, want %d", res.ExitCode, icl.ExitInvalidInvocation)
	}
}

func TestEmptyTargets_SuiteErrorUnlessAllowed(t *testing.T) {
	installTool(t, "oktool", "#!/bin/sh\nexit 0\n")

	strict := t.TempDir()
	writeFile(t, filepath.Join(strict, "checkrun.yaml"), `version: 1
checks:
  - name: quick
    tool: oktool
    targets: ["*.nope"]
`)
	res, _, _, err := run(t, strict, "--no-cache")
	if err == nil {
		t.Fatal("expected empty-target error")
	}
	if res.ExitCode != icl.ExitSuiteError {
		t.Errorf("exit = %d, want %d", res.ExitCode, icl.ExitSuiteError)
	}

	lenient := t.TempDir()
	writeFile(t, filepath.Join(lenient, "checkrun.yaml"), `version: 1
checks:
  - name: quick
    tool: oktool
    targets: ["*.nope"]
    allow_empty: true
`)
	res, _, _, err = run(t, lenient, "--no-cache")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ExitCode != icl.ExitSuccess {
		t.Errorf("exit = %d, want 0 for allow_empty", res.ExitCode)
	}
}
