// Package rfs (ROM filesystem) provides the small set of filesystem
// primitives emuman's materializer needs beyond the standard library:
// atomic file writes, cross-device detection for hard-link fallback,
// and temporary-name bookkeeping. It mirrors the teacher's
// pkg/filesystem conventions (atomic_posix.go, temporary.go,
// device_posix.go) generalized to this tool's single-shot (non-daemon)
// use.
package rfs

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
)

// TemporaryNamePrefix is the file name prefix used for all temporary
// files created by emuman while materializing content. Using a
// recognizable prefix lets a later run opportunistically clean up
// temporaries left behind by a crash (see spec §7 recovery policy).
const TemporaryNamePrefix = ".emuman-temporary-"

// TemporaryName generates a temporary sibling name for path, suffixed
// with a random component so concurrent materializations of different
// entries in the same directory never collide.
func TemporaryName(finalName string) string {
	return fmt.Sprintf("%s%s-%x", TemporaryNamePrefix, finalName, rand.Uint64())
}

// WriteFileAtomic writes data to a temporary file in the same directory
// as path and then renames it into place, so that a crash during the
// write leaves either the old content at path or nothing, never a
// truncated file at path itself.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tempPath := filepath.Join(dir, TemporaryName(filepath.Base(path)))

	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("unable to create temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("unable to write temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("unable to close temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("unable to rename temporary file into place: %w", err)
	}
	return nil
}

// CopyFileAtomic copies src (an io.Reader, already opened) to a
// temporary sibling of dst and atomically renames it into place. The
// copy's modification time is the time of the write; the source's
// modification time is not carried over. It is used by the materializer
// when a hard link isn't possible (see LinkAtomic).
func CopyFileAtomic(dst string, src io.Reader, perm os.FileMode) error {
	dir := filepath.Dir(dst)
	tempPath := filepath.Join(dir, TemporaryName(filepath.Base(dst)))

	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("unable to create temporary file: %w", err)
	}
	if _, err := io.Copy(file, src); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("unable to copy content: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("unable to close temporary file: %w", err)
	}
	if err := os.Rename(tempPath, dst); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("unable to rename temporary file into place: %w", err)
	}
	return nil
}

// LinkAtomic attempts to create a hard link from srcPath to dst via a
// temporary sibling name, atomically renamed into place. It reports
// (true, nil) on success. If the underlying syscall reports the two
// paths are on different devices, or that hard links aren't supported
// or the source's link count is exhausted, it reports (false, nil) so
// the caller can fall back to Copy, per spec §4.7's "falls back to Copy
// automatically".
func LinkAtomic(srcPath, dst string) (bool, error) {
	dir := filepath.Dir(dst)
	tempPath := filepath.Join(dir, TemporaryName(filepath.Base(dst)))

	if err := os.Link(srcPath, tempPath); err != nil {
		if isCrossDeviceError(err) || isLinkUnsupportedError(err) {
			return false, nil
		}
		return false, fmt.Errorf("unable to create hard link: %w", err)
	}
	if err := os.Rename(tempPath, dst); err != nil {
		os.Remove(tempPath)
		return false, fmt.Errorf("unable to rename link into place: %w", err)
	}
	return true, nil
}

// CleanStaleTemporaries removes any leftover TemporaryNamePrefix entries
// in dir, opportunistically, from a previous run that crashed mid-write.
// Errors are swallowed; this is best-effort housekeeping, never a
// correctness requirement.
func CleanStaleTemporaries(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if len(entry.Name()) >= len(TemporaryNamePrefix) && entry.Name()[:len(TemporaryNamePrefix)] == TemporaryNamePrefix {
			os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}
