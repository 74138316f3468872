package check

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// ResultHash is the deterministic cache identity of one check execution.
//
// Includes: resolved target paths and contents, tool name, arguments,
// environment overrides, the allow-empty policy.
// Excludes: timestamps, absolute paths, machine-specific data.
//
// Any change to an included component produces a different ResultHash.
type ResultHash string

// Hasher computes deterministic ResultHashes.
//
// The computation is:
//   - Deterministic: identical inputs always produce identical hashes.
//   - Content-based: target file contents, not metadata.
//   - Ordered: every multi-valued component is sorted before hashing.
type Hasher struct{}

// NewHasher creates a Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashInput contains every component of a check's cache identity.
type HashInput struct {
	// Targets is the resolved TargetSet (already sorted by TargetResolver).
	Targets *TargetSet

	// Tool is the check's tool name.
	Tool string

	// Args are the check's tool arguments, in declaration order.
	Args []string

	// Env is the map of environment overrides.
	Env map[string]string

	// AllowEmpty is the check's empty-match policy. It is part of identity
	// because it changes how a result is interpreted.
	AllowEmpty bool
}

// ComputeHash computes the ResultHash for the given inputs.
//
// Components are concatenated in a fixed order, each length-prefixed to
// prevent ambiguity between adjacent fields:
//  1. Tool name
//  2. Arguments (count, then each in order)
//  3. Sorted environment overrides (count, then key/value pairs)
//  4. AllowEmpty flag
//  5. Each target (already sorted): path, then content
func (h *Hasher) ComputeHash(input HashInput) ResultHash {
	hasher := sha256.New()

	var lenBuf [8]byte
	writeField := func(data []byte) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
		hasher.Write(lenBuf[:])
		hasher.Write(data)
	}

	// 1. Tool
	writeField([]byte(input.Tool))

	// 2. Arguments, order-preserving (argument order is meaningful to tools)
	writeField([]byte{byte(len(input.Args))})
	for _, a := range input.Args {
		writeField([]byte(a))
	}

	// 3. Environment overrides, sorted for determinism
	envKeys := make([]string, 0, len(input.Env))
	for k := range input.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	writeField([]byte{byte(len(envKeys))})
	for _, k := range envKeys {
		writeField([]byte(k))
		writeField([]byte(input.Env[k]))
	}

	// 4. Empty-match policy
	if input.AllowEmpty {
		writeField([]byte{1})
	} else {
		writeField([]byte{0})
	}

	// 5. Targets: path + content, in TargetSet order (sorted by resolver)
	if input.Targets != nil {
		for _, t := range input.Targets.Targets {
			writeField([]byte(t.Path))
			writeField(t.Content)
		}
	}

	return ResultHash(hex.EncodeToString(hasher.Sum(nil)))
}
