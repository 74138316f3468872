package check

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
)

// ExecutionResult contains the outcome of one tool invocation.
//
// A non-zero ExitCode is a valid result (the tool found problems, or the tool
// itself errored); only infrastructure failures surface as Go errors.
type ExecutionResult struct {
	// Stdout is the captured standard output of the tool.
	Stdout []byte

	// Stderr is the captured standard error of the tool.
	Stderr []byte

	// ExitCode is the tool's exit code, propagated exactly.
	ExitCode int

	// Hash is the ResultHash this execution was performed under.
	Hash ResultHash
}

// ToolNotFoundError reports that a check's tool is not on the host PATH.
//
// The tools are an implicit environment dependency; a missing tool is an
// infrastructure failure, not an analysis result.
type ToolNotFoundError struct {
	Tool string
	Err  error
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found on PATH: %v", e.Tool, e.Err)
}

func (e *ToolNotFoundError) Unwrap() error { return e.Err }

// Executor runs check tools rooted at the project directory.
//
// The tool process runs with its working directory set to Root, so the
// root-relative target paths passed as arguments resolve correctly no matter
// where the runner itself was launched.
type Executor struct {
	// Root is the directory tool processes execute in.
	Root string
}

// NewExecutor creates an Executor rooted at the given directory.
func NewExecutor(root string) *Executor {
	return &Executor{Root: root}
}

// Execute invokes the check's tool over the resolved target paths.
//
// The argument vector is tool + check args + sorted target paths; no shell is
// involved, so the tool's exit code is observed directly with no intermediate
// stage that could swallow it.
//
// Environment: the tool sees the host environment with the check's Env
// entries layered on top (overrides win). Host passthrough is required
// because the tools are external programs that need PATH, HOME and friends.
func (e *Executor) Execute(ctx context.Context, chk *Check, targets []string, hash ResultHash) (*ExecutionResult, error) {
	if chk == nil {
		return nil, fmt.Errorf("check is nil")
	}
	if chk.Tool == "" {
		return nil, fmt.Errorf("check.Tool is empty")
	}

	toolPath, err := exec.LookPath(chk.Tool)
	if err != nil {
		return nil, &ToolNotFoundError{Tool: chk.Tool, Err: err}
	}

	argv := make([]string, 0, len(chk.Args)+len(targets))
	argv = append(argv, chk.Args...)
	argv = append(argv, targets...)

	cmd := exec.CommandContext(ctx, toolPath, argv...)
	cmd.Dir = e.Root
	cmd.Env = layeredEnv(chk.Env)

	// Process group so the whole tool process tree dies on cancellation.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %q: %w", chk.Tool, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, fmt.Errorf("check cancelled: %w", ctx.Err())
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("failed to run %q: %w", chk.Tool, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &ExecutionResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Hash:     hash,
	}, nil
}

// layeredEnv builds the tool environment: host environment first, then the
// check's overrides. Keys overridden by the check shadow the host values.
func layeredEnv(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return os.Environ()
	}

	env := make([]string, 0, len(os.Environ())+len(overrides))
	for _, kv := range os.Environ() {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if _, shadowed := overrides[key]; shadowed {
			continue
		}
		env = append(env, kv)
	}

	// Sorted for a stable argv/env shape across runs.
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, overrides[k]))
	}

	return env
}
