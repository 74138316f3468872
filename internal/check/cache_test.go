package check

import (
	"bytes"
	"testing"
)

func TestFileCache_RoundTrip(t *testing.T) {
	cache := NewFileCache(t.TempDir())

	entry := &CacheEntry{
		Hash:     ResultHash("abcdef0123456789"),
		Stdout:   []byte("Success: no issues found\n"),
		Stderr:   []byte{},
		ExitCode: 0,
	}
	if err := cache.Put(entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	has, err := cache.Has(entry.Hash)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !has {
		t.Fatal("entry not found after Put")
	}

	got, err := cache.Get(entry.Hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing entry")
	}
	if !bytes.Equal(got.Stdout, entry.Stdout) || got.ExitCode != entry.ExitCode {
		t.Errorf("replayed entry differs: %+v", got)
	}
}

func TestFileCache_FailedResultsAreCacheable(t *testing.T) {
	cache := NewFileCache(t.TempDir())

	entry := &CacheEntry{
		Hash:     ResultHash("feedface00000000"),
		Stderr:   []byte("a.py:1: error: incompatible types\n"),
		ExitCode: 1,
	}
	if err := cache.Put(entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cache.Get(entry.Hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", got.ExitCode)
	}
}

func TestFileCache_MissingEntry(t *testing.T) {
	cache := NewFileCache(t.TempDir())

	has, err := cache.Has(ResultHash("0000000000000000"))
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Error("Has reported a nonexistent entry")
	}

	got, err := cache.Get(ResultHash("0000000000000000"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get returned %+v for nonexistent entry", got)
	}
}

func TestFileCache_EmptyHashRejected(t *testing.T) {
	cache := NewFileCache(t.TempDir())

	if _, err := cache.Has(""); err == nil {
		t.Error("Has accepted an empty hash")
	}
	if err := cache.Put(&CacheEntry{}); err == nil {
		t.Error("Put accepted an entry with empty hash")
	}
}
