package config

import (
	"path/filepath"
	"testing"
)

func TestSetRootThenRootRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	s := New(path)

	if err := s.SetRoot(Mame, "/roms/mame"); err != nil {
		t.Fatalf("SetRoot failed: %v", err)
	}

	reloaded := New(path)
	root, ok, err := reloaded.Root(Mame)
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	if !ok || root != "/roms/mame" {
		t.Fatalf("expected remembered root /roms/mame, got %q (ok=%v)", root, ok)
	}
}

func TestRoot_MissingFileMeansUnconfigured(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yml")
	s := New(path)
	_, ok, err := s.Root(NoIntro)
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	if ok {
		t.Fatal("expected unconfigured category to report ok=false")
	}
}

func TestSoftwareListRootRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	s := New(path)
	if err := s.SetSoftwareListRoot("nes", "/roms/sl/nes"); err != nil {
		t.Fatalf("SetSoftwareListRoot failed: %v", err)
	}

	root, ok, err := s.SoftwareListRoot("nes")
	if err != nil {
		t.Fatalf("SoftwareListRoot failed: %v", err)
	}
	if !ok || root != "/roms/sl/nes" {
		t.Fatalf("expected /roms/sl/nes, got %q (ok=%v)", root, ok)
	}
}

func TestResolveRoot_PrecedenceOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	s := New(path)
	if err := s.SetRoot(Redump, "/remembered"); err != nil {
		t.Fatalf("SetRoot failed: %v", err)
	}

	root, err := ResolveRoot("/explicit", Redump, s)
	if err != nil {
		t.Fatalf("ResolveRoot failed: %v", err)
	}
	if root != "/explicit" {
		t.Fatalf("expected explicit flag to win, got %q", root)
	}

	root, err = ResolveRoot("", Redump, s)
	if err != nil {
		t.Fatalf("ResolveRoot failed: %v", err)
	}
	if root != "/remembered" {
		t.Fatalf("expected remembered root to win absent an explicit flag, got %q", root)
	}
}
