// Package split implements the Split Engine (spec §4.8): given a
// combined input blob whose length matches the sum of some game's
// effective parts, it finds the one partition whose piecewise digests
// match that game's catalog entries and writes the slices out as
// individual files. It is grounded on the teacher's streaming-match
// style (pkg/synchronization/rsync's block-signature comparison),
// generalized from rolling-checksum block matching to whole-part SHA-1
// matching against a fixed catalog.
package split

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tuffy/emuman/pkg/catalog"
	"github.com/tuffy/emuman/pkg/rfs"
	"github.com/tuffy/emuman/pkg/romsource"
)

// ErrNotFound is returned when no game's effective parts sum to the
// input's length and piecewise-match its bytes.
type ErrNotFound struct{}

func (ErrNotFound) Error() string {
	return "no catalog game matches this input as a combined blob"
}

// ErrAmbiguous is returned when more than one game matches, per spec
// §4.8: "Multiple matches are a conflict error."
type ErrAmbiguous struct {
	Games []string
}

func (e ErrAmbiguous) Error() string {
	return fmt.Sprintf("input matches more than one game: %v", e.Games)
}

// candidate is one game's effective parts, ordered by name, considered
// as a split hypothesis.
type candidate struct {
	game  string
	names []string
	parts map[string]catalog.Part
}

// Split reads inputPath once per size-matching candidate (games whose
// effective parts sum exactly to the input's length), streams
// per-slice digests in the candidate's part-name order, and on success
// writes each slice under outDir using its part name. It returns the
// matched game's name.
func Split(cat catalog.Catalog, inputPath, outDir string) (string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return "", fmt.Errorf("unable to stat %s: %w", inputPath, err)
	}
	length := uint64(info.Size())

	candidates, err := sizeMatchingCandidates(cat, length)
	if err != nil {
		return "", err
	}

	parent := romsource.NewLooseFile(inputPath, info.Size())

	var matched []candidate
	for _, c := range candidates {
		ok, err := matches(parent, c, length)
		if err != nil {
			return "", err
		}
		if ok {
			matched = append(matched, c)
		}
	}

	switch len(matched) {
	case 0:
		return "", ErrNotFound{}
	case 1:
		// fall through
	default:
		games := make([]string, len(matched))
		for i, c := range matched {
			games[i] = c.game
		}
		return "", ErrAmbiguous{Games: games}
	}

	winner := matched[0]
	if err := writeSlices(parent, winner, outDir); err != nil {
		return "", err
	}
	return winner.game, nil
}

func sizeMatchingCandidates(cat catalog.Catalog, length uint64) ([]candidate, error) {
	var candidates []candidate
	for _, name := range cat.Names() {
		effective, err := cat.EffectiveParts(name)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve effective parts for %s: %w", name, err)
		}
		if len(effective) == 0 {
			continue
		}
		names := make([]string, 0, len(effective))
		var total uint64
		for partName, part := range effective {
			names = append(names, partName)
			total += part.Size
		}
		if total != length {
			continue
		}
		sort.Strings(names)
		candidates = append(candidates, candidate{game: name, names: names, parts: effective})
	}
	return candidates, nil
}

// matches streams parent once, slice by slice in candidate order,
// computing each slice's digest and comparing against the
// corresponding catalog part. It exits as soon as one slice fails to
// match, per spec §4.8's single-pass rationale.
func matches(parent romsource.Ref, c candidate, length uint64) (bool, error) {
	var offset uint64
	for _, name := range c.names {
		part := c.parts[name]
		slice := romsource.NewByteSlice(&parent, offset, part.Size)
		d, _, err := slice.Digest()
		if err != nil {
			return false, fmt.Errorf("unable to read slice %s of candidate %s: %w", name, c.game, err)
		}
		if d != part.Digest {
			return false, nil
		}
		offset += part.Size
	}
	return offset == length, nil
}

func writeSlices(parent romsource.Ref, c candidate, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("unable to create output directory %s: %w", outDir, err)
	}

	var offset uint64
	for _, name := range c.names {
		part := c.parts[name]
		slice := romsource.NewByteSlice(&parent, offset, part.Size)

		stream, err := slice.Open()
		if err != nil {
			return fmt.Errorf("unable to open slice %s: %w", name, err)
		}
		dst := filepath.Join(outDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			stream.Close()
			return fmt.Errorf("unable to create directory for %s: %w", name, err)
		}
		writeErr := rfs.CopyFileAtomic(dst, stream, 0o644)
		stream.Close()
		if writeErr != nil {
			return fmt.Errorf("unable to write slice %s: %w", name, writeErr)
		}
		offset += part.Size
	}
	return nil
}
