package index

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tuffy/emuman/pkg/digest"
	"github.com/tuffy/emuman/pkg/romsource"
	"github.com/tuffy/emuman/pkg/workerpool"
	"github.com/tuffy/emuman/pkg/xattrcache"
)

func digestOf(t *testing.T, data []byte) digest.Digest {
	t.Helper()
	h := digest.Hasher()
	h.Write(data)
	return digest.Sum(h)
}

func TestScanDirectoryIndexesLooseFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foo.bin"), []byte("foo contents"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bar.bin"), []byte("bar contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx := New()
	pool := workerpool.New(context.Background(), 4)
	stats, err := Scan([]string{dir}, idx, nil, pool, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if stats.FilesScanned != 2 {
		t.Fatalf("expected 2 files scanned, got %d", stats.FilesScanned)
	}

	for _, content := range []string{"foo contents", "bar contents"} {
		if _, ok := idx.Lookup(digestOf(t, []byte(content))); !ok {
			t.Fatalf("expected index to contain digest of %q", content)
		}
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 distinct digests, got %d", idx.Len())
	}
}

func TestScanArchiveIndexesEntries(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "game.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	entries := map[string]string{
		"rom1.bin": "rom one data",
		"rom2.bin": "rom two data",
	}
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	defer romsource.ReleaseArchives()

	idx := New()
	pool := workerpool.New(context.Background(), 4)
	stats, err := Scan([]string{archivePath}, idx, nil, pool, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if stats.ArchivesScanned != 1 || stats.ArchiveEntries != 2 {
		t.Fatalf("unexpected archive stats: %+v", stats)
	}
	for _, content := range entries {
		if _, ok := idx.Lookup(digestOf(t, []byte(content))); !ok {
			t.Fatalf("expected index to contain digest of %q", content)
		}
	}
}

// TestScanArchiveIsolatesPerEntryFailure proves that a single corrupt
// archive entry (a CRC mismatch, the same failure mode as an
// unreachable remote blob or an unreadable loose file) is logged and
// skipped rather than aborting the scan of the archive's other,
// healthy entries, per spec §7.
func TestScanArchiveIsolatesPerEntryFailure(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "game.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	goodContent := []byte("good entry data")
	badContent := []byte("bad entry data!!")
	for name, content := range map[string][]byte{"good.bin": goodContent, "bad.bin": badContent} {
		hdr := &zip.FileHeader{Name: name, Method: zip.Store}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	defer romsource.ReleaseArchives()

	raw, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	idxOf := -1
	for i := range raw {
		if i+len(badContent) <= len(raw) && string(raw[i:i+len(badContent)]) == string(badContent) {
			idxOf = i
			break
		}
	}
	if idxOf == -1 {
		t.Fatal("unable to locate stored entry bytes to corrupt")
	}
	raw[idxOf] ^= 0xff
	if err := os.WriteFile(archivePath, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	idx := New()
	pool := workerpool.New(context.Background(), 4)
	stats, err := Scan([]string{archivePath}, idx, nil, pool, nil)
	if err != nil {
		t.Fatalf("Scan should isolate the corrupt entry, not fail outright: %v", err)
	}
	if stats.ArchiveEntries != 2 {
		t.Fatalf("expected 2 archive entries discovered, got %d", stats.ArchiveEntries)
	}
	if stats.PartsFailed != 1 {
		t.Fatalf("expected 1 part failure recorded, got %d", stats.PartsFailed)
	}
	if _, ok := idx.Lookup(digestOf(t, goodContent)); !ok {
		t.Fatal("expected the healthy entry to still be indexed despite its sibling's failure")
	}
	if idx.Len() != 1 {
		t.Fatalf("expected only the healthy entry's digest in the index, got %d entries", idx.Len())
	}
}

func TestScanLooseFileUsesCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cached.bin")
	if err := os.WriteFile(path, []byte("cached contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := xattrcache.New(nil)
	idx := New()
	pool := workerpool.New(context.Background(), 2)
	stats, err := Scan([]string{path}, idx, cache, pool, nil)
	if err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	if stats.CacheMisses != 1 || stats.CacheHits != 0 {
		t.Fatalf("expected a cache miss on first scan, got %+v", stats)
	}

	idx2 := New()
	pool2 := workerpool.New(context.Background(), 2)
	stats2, err := Scan([]string{path}, idx2, cache, pool2, nil)
	if err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	if stats2.CacheHits != 1 {
		t.Skip("xattr support unavailable on this filesystem; cache hit not observed")
	}
}
