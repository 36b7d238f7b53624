// Package catalogio is a minimal stand-in for the catalog ingestion
// collaborator described in spec §6: `list_catalogs() -> [id]`,
// `load(id) -> Catalog`, `enumerate_games(Catalog) -> iter Game`.
// Parsing the various real-world DAT/XML catalog formats (MAME XML,
// software-list XML, No-Intro/Redump DAT) is explicitly out of scope
// (spec §1); this package instead reads catalogs already expressed in
// this module's own YAML shape, which is enough to exercise the core
// engine end to end without taking on a DAT parser's scope.
package catalogio

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/tuffy/emuman/pkg/catalog"
)

// List returns the catalog ids (file base names, without extension)
// available under dir. A missing dir yields an empty list, not an
// error — matching the "not yet configured" convention of spec §6.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "unable to list catalogs in %s", dir)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ext := filepath.Ext(name); ext == ".yml" || ext == ".yaml" {
			ids = append(ids, strings.TrimSuffix(name, ext))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Load reads and parses the catalog named id under dir.
func Load(dir, id string) (catalog.Catalog, error) {
	path := filepath.Join(dir, id+".yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if alt, altErr := os.ReadFile(filepath.Join(dir, id+".yaml")); altErr == nil {
			data, err = alt, nil
		} else {
			return catalog.Catalog{}, errors.Wrapf(err, "unable to read catalog %s", id)
		}
	}

	var cat catalog.Catalog
	if err := yaml.UnmarshalStrict(data, &cat); err != nil {
		return catalog.Catalog{}, errors.Wrapf(err, "unable to parse catalog %s", id)
	}
	if cat.Games == nil {
		cat.Games = map[string]catalog.Game{}
	}
	for name, game := range cat.Games {
		game.Name = name
		cat.Games[name] = game
	}
	if err := cat.ValidateAcyclic(); err != nil {
		return catalog.Catalog{}, errors.Wrapf(err, "catalog %s is invalid", id)
	}
	return cat, nil
}

// EnumerateGames returns every game in cat, sorted by name, mirroring
// catalog.Catalog.Names but yielding the full Game value rather than
// just its name.
func EnumerateGames(cat catalog.Catalog) []catalog.Game {
	names := cat.Names()
	games := make([]catalog.Game, 0, len(names))
	for _, name := range names {
		games = append(games, cat.Games[name])
	}
	return games
}
