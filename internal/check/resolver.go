package check

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Target is a resolved file that a check will analyze.
//
// Path is relative to the project root and slash-normalized so that the same
// tree produces the same TargetSet on every platform. Content is read eagerly
// because check identity is content-based.
type Target struct {
	Path    string
	Content []byte
}

// TargetSet is the deterministic result of resolving a check's target globs.
type TargetSet struct {
	Targets []Target
}

// Paths returns the resolved root-relative paths in sorted order.
func (s *TargetSet) Paths() []string {
	paths := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		paths[i] = t.Path
	}
	return paths
}

// TargetResolver expands declared target patterns to a deterministic TargetSet.
//
// Guarantees:
//   - Glob expansion is strictly sorted; filesystem ordering never leaks into
//     results.
//   - Paths are root-relative and slash-normalized.
//   - Duplicates across patterns are removed.
type TargetResolver struct {
	// Root is the project root. All patterns are resolved relative to it,
	// which makes the resolved set independent of the launch directory.
	Root string
}

// NewTargetResolver creates a TargetResolver rooted at the given directory.
func NewTargetResolver(root string) *TargetResolver {
	return &TargetResolver{Root: root}
}

// Resolve expands all patterns and returns a deterministic TargetSet.
//
// The resolution process:
//  1. Each pattern is expanded with filepath.Glob under Root.
//  2. Matches are reduced to files (directories are skipped).
//  3. Paths are rebased onto Root and slash-normalized.
//  4. The union is sorted lexicographically and deduplicated.
//  5. File contents are read for content-based identity.
//
// A pattern that matches nothing contributes nothing; whether an entirely
// empty result is acceptable is the caller's policy (see Check.AllowEmpty).
func (r *TargetResolver) Resolve(patterns []string) (*TargetSet, error) {
	pathSet := make(map[string]struct{})

	for _, pattern := range patterns {
		expanded, err := r.expandPattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding pattern %q: %w", pattern, err)
		}
		for _, p := range expanded {
			pathSet[p] = struct{}{}
		}
	}

	// Sort explicitly; never rely on OS directory ordering.
	paths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	targets := make([]Target, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(path)))
		if err != nil {
			return nil, fmt.Errorf("reading target %q: %w", path, err)
		}
		targets = append(targets, Target{Path: path, Content: content})
	}

	return &TargetSet{Targets: targets}, nil
}

// expandPattern expands one glob pattern into root-relative file paths.
// A pattern without glob characters is treated as a literal path.
func (r *TargetResolver) expandPattern(pattern string) ([]string, error) {
	fullPattern := pattern
	if !filepath.IsAbs(pattern) {
		fullPattern = filepath.Join(r.Root, pattern)
	}

	matches, err := filepath.Glob(fullPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}

	if len(matches) == 0 && !containsGlobChar(pattern) {
		if _, err := os.Stat(fullPattern); err == nil {
			matches = []string{fullPattern}
		}
	}

	relative := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", match, err)
		}
		if info.IsDir() {
			continue
		}

		rel, err := filepath.Rel(r.Root, match)
		if err != nil {
			return nil, fmt.Errorf("rebasing %q onto root: %w", match, err)
		}
		relative = append(relative, filepath.ToSlash(rel))
	}

	return relative, nil
}

// containsGlobChar returns true if the pattern contains glob special characters.
func containsGlobChar(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', ']':
			return true
		}
	}
	return false
}
