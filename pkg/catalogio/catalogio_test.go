package catalogio

import (
	"os"
	"path/filepath"
	"testing"
)

const mrdoYAML = `
games:
  mrdo:
    name: mrdo
    description: Mr. Do!
    parts:
      a.bin:
        name: a.bin
        size: 1
        digest: "da39a3ee5e6b4b0d3255bfef95601890afd80709"
`

func TestListAndLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mame.yml"), []byte(mrdoYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err := List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "mame" {
		t.Fatalf("expected [mame], got %v", ids)
	}

	cat, err := Load(dir, "mame")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	game, err := cat.Resolve("mrdo")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if game.Description != "Mr. Do!" {
		t.Fatalf("expected description to round-trip, got %q", game.Description)
	}
	if _, ok := game.Parts["a.bin"]; !ok {
		t.Fatal("expected a.bin part to be present")
	}
}

func TestList_MissingDirIsEmpty(t *testing.T) {
	ids, err := List(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty list, got %v", ids)
	}
}

func TestEnumerateGames_SortedByName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mame.yml"), []byte(mrdoYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := Load(dir, "mame")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	games := EnumerateGames(cat)
	if len(games) != 1 || games[0].Name != "mrdo" {
		t.Fatalf("expected [mrdo], got %+v", games)
	}
}
