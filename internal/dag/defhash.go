package dag

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"checkrun/internal/check"
)

// computeDefHash hashes the declarative definition fields of a check: tool,
// arguments, target patterns, environment overrides and the empty-match
// policy. Target file contents are deliberately excluded; file changes alter
// a check's ResultHash, not the graph's identity.
//
// Determinism rules:
//   - Target patterns are treated as a set for identity and thus sorted.
//   - Env map is sorted by key.
//   - All fields are length-prefixed to avoid ambiguity.
func computeDefHash(c check.Check) DefHash {
	h := sha256.New()

	var lenBuf [8]byte
	writeField := func(data []byte) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
		h.Write(lenBuf[:])
		h.Write(data)
	}

	writeField([]byte(c.Tool))

	// Args, order-preserving
	writeField([]byte{byte(len(c.Args))})
	for _, a := range c.Args {
		writeField([]byte(a))
	}

	// Targets (sorted)
	sortedTargets := make([]string, len(c.Targets))
	copy(sortedTargets, c.Targets)
	sort.Strings(sortedTargets)
	writeField([]byte{byte(len(sortedTargets))})
	for _, t := range sortedTargets {
		writeField([]byte(t))
	}

	// Env (sorted)
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

	if c.AllowEmpty {
		writeField([]byte{1})
	} else {
		writeField([]byte{0})
	}

	return DefHash(hex.EncodeToString(h.Sum(nil)))
}
