// Package materialize implements the Materializer (spec §4.7): it
// applies one game's plan.Plan to the filesystem in the required order
// (renames, then materializations, then deletes, then directory
// prune), hard-linking when possible and falling back to a byte-exact
// copy otherwise. It is grounded on the teacher's atomic-write and
// cross-device fallback conventions (pkg/filesystem/atomic_posix.go,
// device_posix.go), generalized from mutagen's sync-reconciliation use
// to this tool's catalog-driven materialization.
package materialize

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tuffy/emuman/pkg/logging"
	"github.com/tuffy/emuman/pkg/plan"
	"github.com/tuffy/emuman/pkg/rfs"
	"github.com/tuffy/emuman/pkg/romsource"
)

// Options controls how Apply executes a plan.
type Options struct {
	// DryRun, when true, records intended actions (via Logger) but
	// performs no filesystem mutation, per spec §4.7.
	DryRun bool
	Logger *logging.Logger
}

// Stats tallies the bytes moved while applying a plan, surfaced in the
// Reporter's summary counters (spec §4.9).
type Stats struct {
	BytesWritten  int64
	BytesLinked   int64
	ExtrasDeleted int
}

// Apply executes p's actions against the filesystem in the mandated
// order: Renames, then Materializations, then Deletes, then directory
// prune. Actions for a single game are applied serially, matching spec
// §5's "Materializer tasks for a single game directory are serialized
// relative to each other".
func Apply(p plan.Plan, opts Options) (Stats, error) {
	var stats Stats

	if !opts.DryRun {
		if err := os.MkdirAll(p.GameDir, 0o755); err != nil {
			return stats, fmt.Errorf("unable to create game directory %s: %w", p.GameDir, err)
		}
		rfs.CleanStaleTemporaries(p.GameDir)
	}

	for _, action := range p.Actions {
		if action.Kind != plan.Rename {
			continue
		}
		if err := applyRename(p.GameDir, action, opts); err != nil {
			return stats, err
		}
	}

	for _, action := range p.Actions {
		if action.Kind != plan.Materialize {
			continue
		}
		if err := applyMaterialize(p.GameDir, action, opts, &stats); err != nil {
			return stats, err
		}
	}

	for _, action := range p.Actions {
		if action.Kind != plan.Delete {
			continue
		}
		if err := applyDelete(p.GameDir, action, opts); err != nil {
			return stats, err
		}
		stats.ExtrasDeleted++
	}

	if !opts.DryRun {
		pruneEmptyDirs(p.GameDir)
	}

	return stats, nil
}

func applyRename(gameDir string, action plan.Action, opts Options) error {
	from := filepath.Join(gameDir, filepath.FromSlash(action.From))
	to := filepath.Join(gameDir, filepath.FromSlash(action.Path))

	if opts.Logger != nil {
		opts.Logger.Printf("rename %s -> %s", action.From, action.Path)
	}
	if opts.DryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("unable to create directory for %s: %w", action.Path, err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("unable to rename %s to %s: %w", action.From, action.Path, err)
	}
	return nil
}

func applyMaterialize(gameDir string, action plan.Action, opts Options, stats *Stats) error {
	dst := filepath.Join(gameDir, filepath.FromSlash(action.Path))
	length, err := action.Source.Length()
	if err != nil {
		return fmt.Errorf("unable to determine length of %s: %w", action.Source, err)
	}

	if opts.Logger != nil {
		opts.Logger.Printf("materialize %s from %s", action.Path, action.Source)
	}
	if opts.DryRun {
		stats.BytesWritten += int64(length)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("unable to create directory for %s: %w", action.Path, err)
	}

	// Only a loose file's path holds exactly the source's bytes; an archive
	// entry's or byte slice's Path is the whole containing file.
	if action.Source.Kind() == romsource.LooseFile {
		linked, err := rfs.LinkAtomic(action.Source.Path(), dst)
		if err != nil {
			return fmt.Errorf("unable to link %s: %w", action.Path, err)
		}
		if linked {
			stats.BytesLinked += int64(length)
			return nil
		}
		if opts.Logger != nil {
			opts.Logger.Printf("hard link unavailable for %s, falling back to copy", action.Path)
		}
	}

	stream, err := action.Source.Open()
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", action.Source, err)
	}
	defer stream.Close()

	if err := rfs.CopyFileAtomic(dst, stream, 0o644); err != nil {
		return fmt.Errorf("unable to copy %s: %w", action.Path, err)
	}
	stats.BytesWritten += int64(length)
	return nil
}

func applyDelete(gameDir string, action plan.Action, opts Options) error {
	path := filepath.Join(gameDir, filepath.FromSlash(action.Path))

	if opts.Logger != nil {
		opts.Logger.Printf("delete %s", action.Path)
	}
	if opts.DryRun {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to delete %s: %w", action.Path, err)
	}
	return nil
}

// pruneEmptyDirs removes any subdirectory left empty by deletes or
// renames, walking bottom-up so nested empty directories collapse in
// one pass. It never removes gameDir itself.
func pruneEmptyDirs(gameDir string) {
	var dirs []string
	filepath.WalkDir(gameDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == gameDir {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err == nil && len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}
}
