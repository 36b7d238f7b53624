package split

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tuffy/emuman/pkg/catalog"
	"github.com/tuffy/emuman/pkg/digest"
)

func digestFor(t *testing.T, s string) digest.Digest {
	t.Helper()
	h := digest.Hasher()
	h.Write([]byte(s))
	return digest.Sum(h)
}

func TestSplit_WritesMatchingGame(t *testing.T) {
	dir := t.TempDir()
	blobPath := filepath.Join(dir, "blob.bin")
	partA, partB, partC := "11112222", "bbbbbbbb", "ccccccccdddddddd"
	if err := os.WriteFile(blobPath, []byte(partA+partB+partC), 0o644); err != nil {
		t.Fatal(err)
	}

	cat := catalog.Catalog{Games: map[string]catalog.Game{
		"game1": {
			Name: "game1",
			Parts: map[string]catalog.Part{
				"a.bin": {Name: "a.bin", Size: uint64(len(partA)), Digest: digestFor(t, partA)},
				"b.bin": {Name: "b.bin", Size: uint64(len(partB)), Digest: digestFor(t, partB)},
				"c.bin": {Name: "c.bin", Size: uint64(len(partC)), Digest: digestFor(t, partC)},
			},
		},
	}}

	outDir := filepath.Join(dir, "out")
	game, err := Split(cat, blobPath, outDir)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if game != "game1" {
		t.Fatalf("expected game1, got %s", game)
	}

	for name, want := range map[string]string{"a.bin": partA, "b.bin": partB, "c.bin": partC} {
		got, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("expected %s to be written: %v", name, err)
		}
		if string(got) != want {
			t.Fatalf("expected %s content %q, got %q", name, want, got)
		}
	}
}

func TestSplit_NotFound(t *testing.T) {
	dir := t.TempDir()
	blobPath := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(blobPath, []byte("nonmatching data"), 0o644); err != nil {
		t.Fatal(err)
	}

	cat := catalog.Catalog{Games: map[string]catalog.Game{
		"game1": {Name: "game1", Parts: map[string]catalog.Part{
			"a.bin": {Name: "a.bin", Size: 4, Digest: digestFor(t, "AAAA")},
		}},
	}}

	_, err := Split(cat, blobPath, filepath.Join(dir, "out"))
	if _, ok := err.(ErrNotFound); !ok {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSplit_Ambiguous(t *testing.T) {
	dir := t.TempDir()
	blobPath := filepath.Join(dir, "blob.bin")
	content := "AAAA"
	if err := os.WriteFile(blobPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cat := catalog.Catalog{Games: map[string]catalog.Game{
		"game1": {Name: "game1", Parts: map[string]catalog.Part{
			"a.bin": {Name: "a.bin", Size: 4, Digest: digestFor(t, content)},
		}},
		"game2": {Name: "game2", Parts: map[string]catalog.Part{
			"z.bin": {Name: "z.bin", Size: 4, Digest: digestFor(t, content)},
		}},
	}}

	_, err := Split(cat, blobPath, filepath.Join(dir, "out"))
	if _, ok := err.(ErrAmbiguous); !ok {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	blobPath := filepath.Join(dir, "blob.bin")
	partA, partB := "0123456701234567", "89abcdef89abcdef"
	if err := os.WriteFile(blobPath, []byte(partA+partB), 0o644); err != nil {
		t.Fatal(err)
	}

	cat := catalog.Catalog{Games: map[string]catalog.Game{
		"game1": {Name: "game1", Parts: map[string]catalog.Part{
			"a.bin": {Name: "a.bin", Size: uint64(len(partA)), Digest: digestFor(t, partA)},
			"b.bin": {Name: "b.bin", Size: uint64(len(partB)), Digest: digestFor(t, partB)},
		}},
	}}

	outDir1 := filepath.Join(dir, "out1")
	if _, err := Split(cat, blobPath, outDir1); err != nil {
		t.Fatalf("first split failed: %v", err)
	}
	outDir2 := filepath.Join(dir, "out2")
	if _, err := Split(cat, blobPath, outDir2); err != nil {
		t.Fatalf("second split failed: %v", err)
	}

	for name, want := range map[string]string{"a.bin": partA, "b.bin": partB} {
		a, _ := os.ReadFile(filepath.Join(outDir1, name))
		b, _ := os.ReadFile(filepath.Join(outDir2, name))
		if string(a) != string(b) {
			t.Fatalf("expected identical output across reruns for %s", name)
		}
		if string(a) != want {
			t.Fatalf("expected %s to reproduce its original part %q, got %q", name, want, a)
		}
	}
}
