package xattrcache

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/tuffy/emuman/pkg/digest"
)

func TestLookupMissThenHit(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("extended attributes require a POSIX filesystem")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "a4-01.bin")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	cache := New(nil)

	if _, ok := cache.Lookup(path, info); ok {
		t.Fatal("expected cache miss before any Store")
	}

	h := digest.Hasher()
	h.Write([]byte("hello"))
	d := digest.Sum(h)
	cache.Store(path, info, d)

	got, ok := cache.Lookup(path, info)
	if !ok {
		t.Fatal("expected cache hit after Store")
	}
	if got != d {
		t.Fatalf("cached digest mismatch: got %v, want %v", got, d)
	}
}

func TestLookupInvalidatesOnModification(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("extended attributes require a POSIX filesystem")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "a4-01.bin")
	os.WriteFile(path, []byte("hello"), 0644)
	info, _ := os.Stat(path)

	cache := New(nil)
	h := digest.Hasher()
	h.Write([]byte("hello"))
	cache.Store(path, info, digest.Sum(h))

	// Rewrite with different size; stat will now mismatch the cached tuple.
	os.WriteFile(path, []byte("hello, world"), 0644)
	newInfo, _ := os.Stat(path)

	if _, ok := cache.Lookup(path, newInfo); ok {
		t.Fatal("expected cache miss after file content changed")
	}
}
