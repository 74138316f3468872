package suite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"checkrun/internal/check"
)

// FileName is the suite file looked for during project discovery.
const FileName = "checkrun.yaml"

// RootError reports that the project root could not be resolved or entered.
//
// Root failures are fatal before any tool runs and carry their own exit
// status at the CLI boundary, distinct from suite definition errors.
type RootError struct {
	Dir string
	Err error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("project root %s: %v", e.Dir, e.Err)
}

func (e *RootError) Unwrap() error { return e.Err }

// Default returns the builtin suite used when a project declares no suite
// file: a single type-analysis check over the top-level Python files and the
// rplugin module tree, with missing third-party imports ignored.
func Default() Suite {
	return Suite{
		Version: SupportedVersion,
		Checks: []check.Check{
			{
				Name:    "types",
				Tool:    "mypy",
				Args:    []string{"--ignore-missing-imports"},
				Targets: []string{"*.py", "rplugin/python3/fm/*.py"},
			},
		},
	}
}

// Project is a resolved project: the root directory checks run against and
// the suite declared there (or the builtin default).
type Project struct {
	// Root is the absolute project root. Tool processes execute here and all
	// target globs resolve relative to it.
	Root string

	// SuitePath is the suite file the suite was loaded from, or "" when the
	// builtin default suite applies.
	SuitePath string

	// Suite is the validated suite.
	Suite Suite
}

// Discover walks upward from startDir looking for a suite file.
//
// The first directory containing one becomes the project root, which makes
// the resolved target set identical for every launch directory under the
// same project. Not finding a suite file anywhere is not an error; found
// reports the outcome.
func Discover(startDir string) (root, suitePath string, found bool, err error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", "", false, fmt.Errorf("suite: resolving %q: %w", startDir, err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		info, statErr := os.Stat(candidate)
		if statErr == nil && !info.IsDir() {
			return dir, candidate, true, nil
		}
		if statErr != nil && !os.IsNotExist(statErr) {
			return "", "", false, fmt.Errorf("suite: stat %s: %w", candidate, statErr)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", false, nil
		}
		dir = parent
	}
}

// Resolve determines the project root and suite for an invocation.
//
// Precedence:
//  1. suitePath set: load that file; root is its directory unless rootDir
//     overrides it.
//  2. rootDir set: use rootDir; load its suite file if present, else the
//     builtin default.
//  3. Neither set: discover upward from workDir; if nothing is found, the
//     builtin default suite applies with workDir as root.
//
// The returned root is always absolute and verified to be an existing
// directory; the caller treats a failure here as fatal before any tool runs.
func Resolve(workDir, rootDir, suitePath string) (Project, error) {
	switch {
	case suitePath != "":
		abs, err := absUnder(workDir, suitePath)
		if err != nil {
			return Project{}, err
		}
		s, err := LoadFile(abs)
		if err != nil {
			return Project{}, err
		}
		root := filepath.Dir(abs)
		if rootDir != "" {
			if root, err = absUnder(workDir, rootDir); err != nil {
				return Project{}, err
			}
		}
		if err := ensureDir(root); err != nil {
			return Project{}, err
		}
		return Project{Root: root, SuitePath: abs, Suite: s}, nil

	case rootDir != "":
		root, err := absUnder(workDir, rootDir)
		if err != nil {
			return Project{}, err
		}
		if err := ensureDir(root); err != nil {
			return Project{}, err
		}
		candidate := filepath.Join(root, FileName)
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			s, err := LoadFile(candidate)
			if err != nil {
				return Project{}, err
			}
			return Project{Root: root, SuitePath: candidate, Suite: s}, nil
		}
		return Project{Root: root, Suite: Default()}, nil

	default:
		root, path, found, err := Discover(workDir)
		if err != nil {
			return Project{}, err
		}
		if !found {
			abs, err := filepath.Abs(workDir)
			if err != nil {
				return Project{}, fmt.Errorf("suite: resolving %q: %w", workDir, err)
			}
			if err := ensureDir(abs); err != nil {
				return Project{}, err
			}
			return Project{Root: abs, Suite: Default()}, nil
		}
		s, err := LoadFile(path)
		if err != nil {
			return Project{}, err
		}
		return Project{Root: root, SuitePath: path, Suite: s}, nil
	}
}

func absUnder(workDir, p string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	absWork, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("suite: resolving %q: %w", workDir, err)
	}
	return filepath.Clean(filepath.Join(absWork, p)), nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return &RootError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return &RootError{Dir: dir, Err: errors.New("not a directory")}
	}
	return nil
}
