// Package suite loads, validates and selects check suites.
//
// A suite is declared in a checkrun.yaml file at the project root. When no
// suite file exists, the builtin default suite applies (see Default).
package suite

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"checkrun/internal/check"
)

// SupportedVersion is the only suite schema version this build understands.
const SupportedVersion = 1

// Suite is a validated, normalized set of checks.
//
// Checks keep their declaration order; that order is the canonical suite
// order used for output replay and exit-code selection.
type Suite struct {
	Version int           `yaml:"version"`
	Checks  []check.Check `yaml:"checks"`
}

// Parse decodes and validates a suite payload.
func Parse(data []byte) (Suite, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Suite{}, fmt.Errorf("suite: payload is empty")
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Suite{}, fmt.Errorf("suite: decode: %w", err)
	}
	s = s.normalized()
	if err := s.Validate(); err != nil {
		return Suite{}, err
	}
	return s, nil
}

// LoadFile reads a suite file from disk and returns the parsed suite.
func LoadFile(path string) (Suite, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Suite{}, fmt.Errorf("suite: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Suite{}, fmt.Errorf("suite: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("suite: read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return Suite{}, fmt.Errorf("suite: %s: %w", filepath.Clean(path), err)
	}
	return s, nil
}

// normalized trims whitespace from identifiers without changing semantics.
func (s Suite) normalized() Suite {
	out := Suite{Version: s.Version, Checks: make([]check.Check, len(s.Checks))}
	for i, c := range s.Checks {
		c.Name = strings.TrimSpace(c.Name)
		c.Tool = strings.TrimSpace(c.Tool)
		for j, n := range c.Needs {
			c.Needs[j] = strings.TrimSpace(n)
		}
		out.Checks[i] = c
	}
	return out
}

// Validate checks structural invariants.
//
// Rejected:
//   - unsupported version
//   - empty suite
//   - empty or duplicate check names
//   - missing tool or targets
//   - needs referencing unknown checks or the check itself
//
// Cycles across needs edges are rejected by the graph layer, which owns
// dependency-structure validation.
func (s Suite) Validate() error {
	if s.Version != SupportedVersion {
		return fmt.Errorf("suite: unsupported version %d (this build supports %d)", s.Version, SupportedVersion)
	}
	if len(s.Checks) == 0 {
		return fmt.Errorf("suite: no checks declared")
	}

	names := make(map[string]struct{}, len(s.Checks))
	for i, c := range s.Checks {
		if c.Name == "" {
			return fmt.Errorf("suite: checks[%d]: name is required", i)
		}
		if _, dup := names[c.Name]; dup {
			return fmt.Errorf("suite: duplicate check name %q", c.Name)
		}
		names[c.Name] = struct{}{}
		if c.Tool == "" {
			return fmt.Errorf("suite: check %q: tool is required", c.Name)
		}
		if len(c.Targets) == 0 {
			return fmt.Errorf("suite: check %q: at least one target is required", c.Name)
		}
		for _, t := range c.Targets {
			if strings.TrimSpace(t) == "" {
				return fmt.Errorf("suite: check %q: empty target pattern", c.Name)
			}
		}
	}

	for _, c := range s.Checks {
		for _, n := range c.Needs {
			if n == c.Name {
				return fmt.Errorf("suite: check %q needs itself", c.Name)
			}
			if _, known := names[n]; !known {
				return fmt.Errorf("suite: check %q needs unknown check %q", c.Name, n)
			}
		}
	}

	return nil
}

// Names returns the check names in canonical suite order.
func (s Suite) Names() []string {
	names := make([]string, len(s.Checks))
	for i, c := range s.Checks {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the check with the given name.
func (s Suite) Lookup(name string) (check.Check, bool) {
	for _, c := range s.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return check.Check{}, false
}

// Select returns the sub-suite for the requested check names plus the
// transitive closure of their needs, preserving canonical suite order.
//
// An empty selection selects the whole suite.
func (s Suite) Select(names []string) (Suite, error) {
	if len(names) == 0 {
		return s, nil
	}

	wanted := make(map[string]struct{})
	var include func(name string) error
	include = func(name string) error {
		if _, done := wanted[name]; done {
			return nil
		}
		c, ok := s.Lookup(name)
		if !ok {
			return fmt.Errorf("suite: unknown check %q", name)
		}
		wanted[name] = struct{}{}
		for _, n := range c.Needs {
			if err := include(n); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := include(name); err != nil {
			return Suite{}, err
		}
	}

	out := Suite{Version: s.Version}
	for _, c := range s.Checks {
		if _, ok := wanted[c.Name]; ok {
			out.Checks = append(out.Checks, c)
		}
	}
	return out, nil
}

// Hash returns the suite's deterministic identity.
//
// It is computed from check definitions only (not target file contents), so
// it answers "is this the same suite?" across runs. The run history layer
// uses it to gate failure-only reruns.
func (s Suite) Hash() string {
	hasher := sha256.New()

	var lenBuf [8]byte
	writeField := func(data []byte) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
		hasher.Write(lenBuf[:])
		hasher.Write(data)
	}

	writeField([]byte{byte(s.Version)})
	for _, c := range s.Checks {
		writeField([]byte(c.Name))
		writeField([]byte(c.Tool))
		writeField([]byte{byte(len(c.Args))})
		for _, a := range c.Args {
			writeField([]byte(a))
		}
		writeField([]byte{byte(len(c.Targets))})
		for _, t := range c.Targets {
			writeField([]byte(t))
		}

		envKeys := make([]string, 0, len(c.Env))
		for k := range c.Env {
			envKeys = append(envKeys, k)
		}
		sort.Strings(envKeys)
		writeField([]byte{byte(len(envKeys))})
		for _, k := range envKeys {
			writeField([]byte(k))
			writeField([]byte(c.Env[k]))
		}

		needs := append([]string(nil), c.Needs...)
		sort.Strings(needs)
		writeField([]byte{byte(len(needs))})
		for _, n := range needs {
			writeField([]byte(n))
		}

		if c.AllowEmpty {
			writeField([]byte{1})
		} else {
			writeField([]byte{0})
		}
	}

	return hex.EncodeToString(hasher.Sum(nil))
}
