// Package catalog provides the read-only query surface over a game
// catalog (spec §4.5): enumerating games, resolving a game's effective
// parts (folding its requires chain), and resolving a game by short
// name. Catalog ingestion itself (parsing DAT/XML into this shape) is
// an external collaborator per spec §1/§6; this package only consumes
// the resulting data model.
package catalog

import (
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/tuffy/emuman/pkg/digest"
)

// Status is the dump quality of a CatalogPart.
type Status int

const (
	StatusGood Status = iota
	StatusBadDump
	StatusNoDump
)

// WorkingStatus is how well a Game is known to function.
type WorkingStatus int

const (
	WorkingGood WorkingStatus = iota
	WorkingImperfect
	WorkingPreliminary
)

// Part is one required file within a game, identified by name, size,
// and expected digest (spec §3 CatalogPart).
type Part struct {
	// Name is the relative path within the game directory (forward
	// slashes, no leading slash, no "..").
	Name   string        `yaml:"name"`
	Size   uint64        `yaml:"size"`
	Digest digest.Digest `yaml:"digest"`
	Status Status        `yaml:"status,omitempty"`
}

// Game is a named set of required parts, possibly inheriting from
// other games via Requires (spec §3).
type Game struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Creator     string          `yaml:"creator,omitempty"`
	Year        string          `yaml:"year,omitempty"`
	Working     WorkingStatus   `yaml:"working,omitempty"`
	Parts       map[string]Part `yaml:"parts"`
	// Requires is the ordered list of other Game names whose parts must
	// also be present (parent/BIOS chain).
	Requires []string `yaml:"requires,omitempty"`
}

// Catalog is a read-only set of games, keyed by name.
type Catalog struct {
	Games map[string]Game `yaml:"games"`
}

// ErrCyclicRequires indicates that a game's requires chain forms a
// cycle, an invariant violation per spec §3.
type ErrCyclicRequires struct {
	Game string
}

func (e *ErrCyclicRequires) Error() string {
	return fmt.Sprintf("cyclic requires chain detected at game %q", e.Game)
}

// ErrUnknownGame indicates that a requires entry (or a lookup by name)
// refers to a game the catalog doesn't contain.
type ErrUnknownGame struct {
	Name string
}

func (e *ErrUnknownGame) Error() string {
	return fmt.Sprintf("unknown game %q", e.Name)
}

// Resolve looks up a game by short name.
func (c Catalog) Resolve(name string) (Game, error) {
	game, ok := c.Games[name]
	if !ok {
		return Game{}, &ErrUnknownGame{Name: name}
	}
	return game, nil
}

// Names returns every game name in the catalog, sorted, for stable
// enumeration (spec §4.5 "enumerate games").
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Games))
	for name := range c.Games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EffectiveParts computes the effective parts of a game: the union over
// itself and its transitive Requires, with child overriding parent on
// name collisions, per spec §3. Requires are folded parents-first, so
// that the game's own parts always shadow whatever its chain declares,
// matching the catalog-shadowing property of spec §8.
func (c Catalog) EffectiveParts(name string) (map[string]Part, error) {
	visiting := map[string]bool{}
	return c.effectiveParts(name, visiting)
}

func (c Catalog) effectiveParts(name string, visiting map[string]bool) (map[string]Part, error) {
	if visiting[name] {
		return nil, &ErrCyclicRequires{Game: name}
	}
	visiting[name] = true
	defer delete(visiting, name)

	game, err := c.Resolve(name)
	if err != nil {
		return nil, err
	}

	result := make(map[string]Part)
	for _, parentName := range game.Requires {
		parentParts, err := c.effectiveParts(parentName, visiting)
		if err != nil {
			return nil, err
		}
		for partName, part := range parentParts {
			result[partName] = part
		}
	}
	for partName, part := range game.Parts {
		result[normalizePartName(partName)] = part
	}

	return result, nil
}

// normalizePartName recomposes Unicode in a part name, mirroring the
// teacher's handling of filesystems that decompose Unicode
// (core.scan.go's recomposeUnicode): catalog part names are normalized
// to NFC here. Names read from disk (plan's inventory) are not
// normalized, so an NFD-decomposed on-disk name does not match its NFC
// catalog name.
func normalizePartName(name string) string {
	return norm.NFC.String(name)
}

// ValidateAcyclic walks every game's requires chain and returns an error
// if any cycle is found. Catalogs are assumed acyclic by construction
// (ingestion is expected to reject cycles), but this is a defensive
// check available to callers that don't trust their catalog source.
func (c Catalog) ValidateAcyclic() error {
	for name := range c.Games {
		if _, err := c.EffectiveParts(name); err != nil {
			return err
		}
	}
	return nil
}
