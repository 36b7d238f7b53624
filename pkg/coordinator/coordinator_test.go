package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
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

func buildMrdoCatalog(t *testing.T) (catalog.Catalog, map[string]string) {
	contents := map[string]string{}
	parts := map[string]catalog.Part{}
	for i := 0; i < 15; i++ {
		name := string(rune('a'+i)) + ".bin"
		content := name + "-payload"
		contents[name] = content
		parts[name] = catalog.Part{Name: name, Size: uint64(len(content)), Digest: digestFor(t, content)}
	}
	cat := catalog.Catalog{Games: map[string]catalog.Game{
		"mrdo": {Name: "mrdo", Parts: parts},
	}}
	return cat, contents
}

func writeInputs(t *testing.T, dir string, contents map[string]string) {
	for name, content := range contents {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRepairThenVerify_Idempotent(t *testing.T) {
	cat, contents := buildMrdoCatalog(t)
	inputDir := t.TempDir()
	destRoot := t.TempDir()
	writeInputs(t, inputDir, contents)

	c := New(cat, destRoot, 2, nil)
	ctx := context.Background()

	reporter, err := c.Repair(ctx, []string{"mrdo"}, []string{inputDir}, false)
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if reporter.Summary().Bad != 0 {
		t.Fatalf("expected repair to leave mrdo OK, got %+v", reporter.Outcomes())
	}

	verifyReporter, err := c.Verify(ctx, []string{"mrdo"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if verifyReporter.Summary().Bad != 0 {
		t.Fatalf("expected verify-after-repair to be OK, got %+v", verifyReporter.Outcomes())
	}

	entries, err := os.ReadDir(filepath.Join(destRoot, "mrdo"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 15 {
		t.Fatalf("expected 15 entries in mrdo/, got %d", len(entries))
	}
}

func TestVerify_DetectsWrongDigestAndExtra(t *testing.T) {
	cat, contents := buildMrdoCatalog(t)
	inputDir := t.TempDir()
	destRoot := t.TempDir()
	writeInputs(t, inputDir, contents)

	c := New(cat, destRoot, 2, nil)
	ctx := context.Background()
	if _, err := c.Repair(ctx, []string{"mrdo"}, []string{inputDir}, false); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	corruptPath := filepath.Join(destRoot, "mrdo", "a.bin")
	if err := os.WriteFile(corruptPath, []byte("corrupted"), 0o644); err != nil {
		t.Fatal(err)
	}
	strayPath := filepath.Join(destRoot, "mrdo", "readme.txt")
	if err := os.WriteFile(strayPath, []byte("stray"), 0o644); err != nil {
		t.Fatal(err)
	}

	reporter, err := c.Verify(ctx, []string{"mrdo"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	outcomes := reporter.Outcomes()
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	o := outcomes[0]
	if len(o.WrongDigest) != 1 || o.WrongDigest[0] != "a.bin" {
		t.Fatalf("expected wrong_digest on a.bin, got %+v", o)
	}
	if len(o.Extra) != 1 || o.Extra[0] != "readme.txt" {
		t.Fatalf("expected extra readme.txt, got %+v", o)
	}
}

func TestRepairAll_SkipsUnmetGames(t *testing.T) {
	cat, contents := buildMrdoCatalog(t)
	// add a second game with no available parts anywhere.
	cat.Games["orphan"] = catalog.Game{
		Name: "orphan",
		Parts: map[string]catalog.Part{
			"missing.bin": {Name: "missing.bin", Size: 4, Digest: digestFor(t, "ZZZZ")},
		},
	}

	inputDir := t.TempDir()
	destRoot := t.TempDir()
	writeInputs(t, inputDir, contents)

	c := New(cat, destRoot, 2, nil)
	ctx := context.Background()
	reporter, err := c.RepairAll(ctx, []string{inputDir}, false)
	if err != nil {
		t.Fatalf("RepairAll failed: %v", err)
	}
	outcomes := reporter.Outcomes()
	if len(outcomes) != 1 || outcomes[0].Game != "mrdo" {
		t.Fatalf("expected only mrdo to be processed, got %+v", outcomes)
	}
}

func TestRepair_DryRunMatchesSubsequentRealRepair(t *testing.T) {
	cat, contents := buildMrdoCatalog(t)
	inputDir := t.TempDir()
	destRoot := t.TempDir()
	writeInputs(t, inputDir, contents)

	c := New(cat, destRoot, 2, nil)
	ctx := context.Background()

	dryReporter, err := c.Repair(ctx, []string{"mrdo"}, []string{inputDir}, true)
	if err != nil {
		t.Fatalf("dry-run repair failed: %v", err)
	}
	if entries, err := os.ReadDir(filepath.Join(destRoot, "mrdo")); err == nil && len(entries) != 0 {
		t.Fatalf("dry-run must not create files, found %d entries", len(entries))
	}

	reporter, err := c.Repair(ctx, []string{"mrdo"}, []string{inputDir}, false)
	if err != nil {
		t.Fatalf("real repair failed: %v", err)
	}
	if reporter.Summary().Bad != 0 {
		t.Fatalf("expected real repair to succeed, got %+v", reporter.Outcomes())
	}
	if !reflect.DeepEqual(dryReporter.Outcomes(), reporter.Outcomes()) {
		t.Fatalf("dry-run outcomes %+v differ from real repair outcomes %+v", dryReporter.Outcomes(), reporter.Outcomes())
	}
}
