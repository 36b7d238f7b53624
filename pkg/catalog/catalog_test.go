package catalog

import (
	"testing"

	"github.com/tuffy/emuman/pkg/digest"
)

func digestFor(s string) digest.Digest {
	h := digest.Hasher()
	h.Write([]byte(s))
	return digest.Sum(h)
}

func TestEffectiveParts_ShadowsParent(t *testing.T) {
	cat := Catalog{Games: map[string]Game{
		"mrdo": {
			Name: "mrdo",
			Parts: map[string]Part{
				"foo.bin": {Name: "foo.bin", Size: 4096, Digest: digestFor("A")},
				"bar.bin": {Name: "bar.bin", Size: 4096, Digest: digestFor("shared")},
			},
		},
		"mrdofix": {
			Name:     "mrdofix",
			Requires: []string{"mrdo"},
			Parts: map[string]Part{
				"foo.bin": {Name: "foo.bin", Size: 4096, Digest: digestFor("B")},
			},
		},
	}}

	parts, err := cat.EffectiveParts("mrdofix")
	if err != nil {
		t.Fatalf("EffectiveParts failed: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 effective parts, got %d", len(parts))
	}
	if parts["foo.bin"].Digest != digestFor("B") {
		t.Fatal("child's part should shadow parent's part of the same name")
	}
	if parts["bar.bin"].Digest != digestFor("shared") {
		t.Fatal("non-overridden parent part should still be present")
	}
}

func TestEffectiveParts_CyclicRequires(t *testing.T) {
	cat := Catalog{Games: map[string]Game{
		"a": {Name: "a", Requires: []string{"b"}},
		"b": {Name: "b", Requires: []string{"a"}},
	}}

	if _, err := cat.EffectiveParts("a"); err == nil {
		t.Fatal("expected cyclic requires error")
	}
}

func TestResolveUnknownGame(t *testing.T) {
	cat := Catalog{Games: map[string]Game{}}
	if _, err := cat.Resolve("nope"); err == nil {
		t.Fatal("expected unknown game error")
	}
}

func TestNames_Sorted(t *testing.T) {
	cat := Catalog{Games: map[string]Game{
		"zelda": {Name: "zelda"},
		"alex":  {Name: "alex"},
	}}
	names := cat.Names()
	if len(names) != 2 || names[0] != "alex" || names[1] != "zelda" {
		t.Fatalf("expected sorted names, got %v", names)
	}
}
