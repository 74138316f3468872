package check

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CacheEntry is a stored result of a check execution.
//
// Includes: stdout, stderr, exit code.
// Excludes: execution timestamps, host-specific metadata.
//
// Failed executions (non-zero exit code) are cacheable: rerunning a check over
// unchanged inputs replays the same diagnostics and the same exit code.
type CacheEntry struct {
	// Hash identifies this cache entry.
	Hash ResultHash `json:"hash"`

	// Stdout is the captured standard output.
	Stdout []byte `json:"stdout"`

	// Stderr is the captured standard error.
	Stderr []byte `json:"stderr"`

	// ExitCode is the tool's exit code.
	ExitCode int `json:"exit_code"`
}

// ResultCache provides storage and retrieval of check results.
//
// If a ResultHash has been seen before, the check is not re-executed; the
// cached result is replayed exactly.
type ResultCache interface {
	// Has checks if a cache entry exists for the given hash.
	Has(hash ResultHash) (bool, error)

	// Get retrieves a cache entry by hash.
	// Returns nil if the entry does not exist.
	Get(hash ResultHash) (*CacheEntry, error)

	// Put stores a cache entry.
	Put(entry *CacheEntry) error
}

// FileCache implements ResultCache on the filesystem.
//
// Structure:
//
//	{Dir}/
//	  {hash[0:2]}/
//	    {hash}.json
//
// Writes are atomic: entries are written to a temp file in the final
// directory and renamed into place, so a crashed run never leaves a torn
// entry behind.
type FileCache struct {
	// Dir is the cache root directory.
	Dir string
}

// NewFileCache creates a FileCache rooted at dir.
func NewFileCache(dir string) *FileCache {
	return &FileCache{Dir: dir}
}

func (c *FileCache) entryPath(hash ResultHash) string {
	h := string(hash)
	if len(h) < 2 {
		return filepath.Join(c.Dir, h+".json")
	}
	return filepath.Join(c.Dir, h[:2], h+".json")
}

// Has checks if a cache entry exists for the given hash.
func (c *FileCache) Has(hash ResultHash) (bool, error) {
	if hash == "" {
		return false, fmt.Errorf("empty hash")
	}
	_, err := os.Stat(c.entryPath(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking cache entry: %w", err)
}

// Get retrieves a cache entry, or nil if it does not exist.
func (c *FileCache) Get(hash ResultHash) (*CacheEntry, error) {
	if hash == "" {
		return nil, fmt.Errorf("empty hash")
	}
	data, err := os.ReadFile(c.entryPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	if entry.Hash != hash {
		return nil, fmt.Errorf("cache entry hash mismatch: stored %q under %q", entry.Hash, hash)
	}
	return &entry, nil
}

// Put stores a cache entry atomically.
func (c *FileCache) Put(entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("entry is nil")
	}
	if entry.Hash == "" {
		return fmt.Errorf("entry hash is empty")
	}

	path := c.entryPath(entry.Hash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing cache entry: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing cache entry: %w", err)
	}
	return nil
}
