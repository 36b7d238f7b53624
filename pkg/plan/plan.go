// Package plan implements the Planner (spec §4.6): for one game, diff
// the catalog's effective parts against what the destination directory
// currently contains and produce an ordered Action list plus an
// Outcome summarizing what is wrong. It is grounded on the teacher's
// reconciliation-loop shape (pkg/synchronization/core's ancestor/alpha/
// beta three-way diff), reduced here to a two-way diff against one
// authoritative catalog side.
package plan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/tuffy/emuman/pkg/catalog"
	"github.com/tuffy/emuman/pkg/digest"
	"github.com/tuffy/emuman/pkg/index"
	"github.com/tuffy/emuman/pkg/rfs"
	"github.com/tuffy/emuman/pkg/romsource"
	"github.com/tuffy/emuman/pkg/xattrcache"
)

// ActionKind identifies the kind of filesystem mutation a plan Action
// represents, per spec §3.
type ActionKind int

const (
	// Keep means the destination already holds the correct bytes under
	// the required name; no mutation is needed.
	Keep ActionKind = iota
	// Rename moves an existing file within the game directory from From
	// to Path, since it already holds the required bytes under the
	// wrong name.
	Rename
	// Materialize writes Path from Source, by hard link or copy,
	// decided by the Materializer at apply time.
	Materialize
	// Delete removes an extra file not named by any effective part.
	Delete
)

// Action is one step of a game's plan, per spec §3.
type Action struct {
	Kind ActionKind

	// Path is the part-relative path the action concerns: the kept
	// name, the rename target, the materialize destination, or the
	// path to delete.
	Path string

	// From is the rename source (Rename only), also part-relative.
	From string

	// Source is the chosen part source (Materialize only).
	Source romsource.Ref
}

// Outcome summarizes one game's divergence from its catalog, per spec
// §3. An Outcome with every slice empty is OK.
type Outcome struct {
	Game            string
	Missing         []string
	WrongDigest     []string
	Extra           []string
	RenameConflicts []string
}

// OK reports whether the game matched its catalog exactly.
func (o Outcome) OK() bool {
	return len(o.Missing) == 0 && len(o.WrongDigest) == 0 && len(o.Extra) == 0 && len(o.RenameConflicts) == 0
}

// Plan is the full set of actions and the resulting outcome for one
// game.
type Plan struct {
	Game    string
	GameDir string
	Actions []Action
	Outcome Outcome
}

// existingEntry is one file currently present in a game directory.
type existingEntry struct {
	Size   uint64
	Digest digest.Digest
}

// Build diffs effective (the game's effective parts, per
// catalog.Catalog.EffectiveParts) against destRoot/gameName and
// produces a Plan. idx supplies candidate sources for parts that must
// be materialized; cache is consulted (and written through) while
// inventorying the existing directory, exactly as the Scanner does for
// loose files.
func Build(gameName string, effective map[string]catalog.Part, destRoot string, idx *index.Index, cache *xattrcache.Cache) (Plan, error) {
	gameDir := filepath.Join(destRoot, gameName)

	existing, err := inventory(gameDir, cache)
	if err != nil {
		return Plan{}, err
	}

	names := sortedPartNames(effective)
	existingNames := sortedExistingNames(existing)

	plan := Plan{Game: gameName, GameDir: gameDir, Outcome: Outcome{Game: gameName}}
	consumedExisting := map[string]bool{}
	resolvedNames := map[string]bool{}

	// Step 1: already_correct.
	for _, name := range names {
		part := effective[name]
		if ex, ok := existing[name]; ok && ex.Size == part.Size && ex.Digest == part.Digest {
			plan.Actions = append(plan.Actions, Action{Kind: Keep, Path: name})
			consumedExisting[name] = true
			resolvedNames[name] = true
		}
	}

	// Step 2: renameable. For every part not already correct, find the
	// first (in sorted order) unconsumed existing path carrying its
	// digest. Collect all names that want a given source so a conflict
	// (two names wanting the same source) can be detected and the first
	// name, per spec §4.6, wins.
	wantsSource := map[string][]string{}
	for _, name := range names {
		if resolvedNames[name] {
			continue
		}
		part := effective[name]
		for _, exName := range existingNames {
			if consumedExisting[exName] {
				continue
			}
			ex := existing[exName]
			if ex.Size == part.Size && ex.Digest == part.Digest {
				wantsSource[exName] = append(wantsSource[exName], name)
				break
			}
		}
	}
	for _, exName := range existingNames {
		wanters, ok := wantsSource[exName]
		if !ok || len(wanters) == 0 {
			continue
		}
		winner := wanters[0]
		plan.Actions = append(plan.Actions, Action{Kind: Rename, From: exName, Path: winner})
		consumedExisting[exName] = true
		resolvedNames[winner] = true
		for _, conflict := range wanters[1:] {
			plan.Outcome.RenameConflicts = append(plan.Outcome.RenameConflicts, conflict)
		}
	}

	// Step 3: needs_materialize.
	destDevice, destDeviceErr := rfs.DeviceID(destRoot)
	for _, name := range names {
		if resolvedNames[name] {
			continue
		}
		part := effective[name]
		refs, ok := idx.Lookup(part.Digest)
		if !ok || len(refs) == 0 {
			continue
		}
		source := chooseSource(refs, destDevice, destDeviceErr == nil)
		plan.Actions = append(plan.Actions, Action{Kind: Materialize, Path: name, Source: source})
	}

	// Step 4: classification, independent of what the plan above
	// managed to resolve: a part is wrong_digest if something already
	// sits at its required name, missing otherwise.
	for _, name := range names {
		part := effective[name]
		ex, present := existing[name]
		switch {
		case present && ex.Size == part.Size && ex.Digest == part.Digest:
			// already correct
		case present:
			plan.Outcome.WrongDigest = append(plan.Outcome.WrongDigest, name)
		default:
			plan.Outcome.Missing = append(plan.Outcome.Missing, name)
		}
	}

	// Step 5: extras. A name that names a required effective part is
	// never an extra, even if it wasn't consumed as a Keep/Rename
	// source above: it's already correct (Step 1), about to be
	// overwritten in place by a Materialize/Rename target (Steps 2-3), or
	// left as it is (and reported wrong_digest) when no source exists.
	// Deleting it here would race the Materializer's write with an
	// unconditional remove of the very file it just produced.
	for _, exName := range existingNames {
		if consumedExisting[exName] {
			continue
		}
		if _, required := effective[exName]; required {
			continue
		}
		plan.Actions = append(plan.Actions, Action{Kind: Delete, Path: exName})
		plan.Outcome.Extra = append(plan.Outcome.Extra, exName)
	}

	return plan, nil
}

// chooseSource prefers a ref whose backing file lives on the same
// device as the destination, for hard-link eligibility (spec §4.6);
// otherwise it falls back to the first ref in discovery order, as
// recorded by the Datum Index.
func chooseSource(refs []romsource.Ref, destDevice uint64, haveDestDevice bool) romsource.Ref {
	if haveDestDevice {
		for _, ref := range refs {
			path := ref.Path()
			if path == "" {
				continue
			}
			if dev, err := rfs.DeviceID(path); err == nil && dev == destDevice {
				return ref
			}
		}
	}
	return refs[0]
}

// inventory walks gameDir (which may not yet exist, in which case the
// result is simply empty) and returns each regular file's part-relative
// path, size, and digest, consulting and updating cache exactly as the
// Scanner does.
func inventory(gameDir string, cache *xattrcache.Cache) (map[string]existingEntry, error) {
	result := map[string]existingEntry{}

	_, err := os.Stat(gameDir)
	if os.IsNotExist(err) {
		return result, nil
	} else if err != nil {
		return nil, err
	}

	walkErr := filepath.WalkDir(gameDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(gameDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		var d20 digest.Digest
		if cache != nil {
			if cached, ok := cache.Lookup(path, info); ok {
				d20 = cached
			} else {
				computed, _, digestErr := romsource.NewLooseFile(path, info.Size()).Digest()
				if digestErr != nil {
					return digestErr
				}
				d20 = computed
				cache.Store(path, info, d20)
			}
		} else {
			computed, _, digestErr := romsource.NewLooseFile(path, info.Size()).Digest()
			if digestErr != nil {
				return digestErr
			}
			d20 = computed
		}

		result[rel] = existingEntry{Size: uint64(info.Size()), Digest: d20}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return result, nil
}

// HasAnyExistingFile reports whether gameDir already contains at least
// one regular file, without computing any digests. repair-all (spec
// §4.10) uses this as a cheap pre-filter for "already partially present
// in the destination" before committing to a full Build.
func HasAnyExistingFile(gameDir string) (bool, error) {
	found := false
	err := filepath.WalkDir(gameDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			found = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func sortedPartNames(effective map[string]catalog.Part) []string {
	names := make([]string, 0, len(effective))
	for name := range effective {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedExistingNames(existing map[string]existingEntry) []string {
	names := make([]string, 0, len(existing))
	for name := range existing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
