package romsource

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bodgit/sevenzip"
)

// archiveFormat identifies which decoder backs an archiveHandle.
type archiveFormat int

const (
	archiveFormatZip archiveFormat = iota
	archiveFormatSevenZip
)

// archiveEntryInfo describes one entry discovered inside an archive.
type archiveEntryInfo struct {
	Name string
	Size uint64
}

// EntryInfo is the exported form of archiveEntryInfo, used by callers
// (the scanner) that need to enumerate an archive's contents before
// deciding which entries to digest.
type EntryInfo struct {
	Name string
	Size uint64
}

// ListZipEntries opens path as a zip archive (reusing the shared handle
// if one is already open for it) and returns its regular-file entries.
func ListZipEntries(path string) ([]EntryInfo, error) {
	h, err := acquireArchive(path, archiveFormatZip)
	if err != nil {
		return nil, err
	}
	return toEntryInfo(h.entries()), nil
}

// ListSevenZipEntries opens path as a 7z archive and returns its
// regular-file entries.
func ListSevenZipEntries(path string) ([]EntryInfo, error) {
	h, err := acquireArchive(path, archiveFormatSevenZip)
	if err != nil {
		return nil, err
	}
	return toEntryInfo(h.entries()), nil
}

func toEntryInfo(in []archiveEntryInfo) []EntryInfo {
	out := make([]EntryInfo, len(in))
	for i, e := range in {
		out[i] = EntryInfo{Name: e.Name, Size: e.Size}
	}
	return out
}

// archiveHandle owns the decoded central directory for one archive file
// and serializes access to its entries: compressed streams require
// sequential access within a single archive (spec §4.3 "implementations
// may serialize entries within one archive", §5, and the "archive entry
// aliasing" design note). Different archives are owned by different
// handles and may be scanned concurrently.
type archiveHandle struct {
	mu     sync.Mutex
	format archiveFormat
	path   string

	zipReader      *zip.ReadCloser
	sevenZipReader *sevenzip.ReadCloser
}

var (
	archiveRegistryMu sync.Mutex
	archiveRegistry   = map[string]*archiveHandle{}
)

// acquireArchive returns the shared handle for path, opening it on first
// use. The handle is cached for the lifetime of the process (effectively
// the command invocation) since one archive file is opened once per scan
// and shared among its entry readers, per spec §4.3.
func acquireArchive(path string, format archiveFormat) (*archiveHandle, error) {
	archiveRegistryMu.Lock()
	if h, ok := archiveRegistry[path]; ok {
		archiveRegistryMu.Unlock()
		return h, nil
	}
	archiveRegistryMu.Unlock()

	h := &archiveHandle{format: format, path: path}
	if err := h.open(); err != nil {
		return nil, err
	}

	archiveRegistryMu.Lock()
	if existing, ok := archiveRegistry[path]; ok {
		archiveRegistryMu.Unlock()
		h.close()
		return existing, nil
	}
	archiveRegistry[path] = h
	archiveRegistryMu.Unlock()
	return h, nil
}

// ReleaseArchives closes every archive handle opened during this command
// invocation. It should be called once, when the coordinator's scan
// phase is entirely finished (all entry readers closed).
func ReleaseArchives() {
	archiveRegistryMu.Lock()
	defer archiveRegistryMu.Unlock()
	for path, h := range archiveRegistry {
		h.close()
		delete(archiveRegistry, path)
	}
}

func (h *archiveHandle) open() error {
	switch h.format {
	case archiveFormatZip:
		r, err := zip.OpenReader(h.path)
		if err != nil {
			return fmt.Errorf("unable to open zip archive %s: %w", h.path, err)
		}
		h.zipReader = r
	case archiveFormatSevenZip:
		r, err := sevenzip.OpenReader(h.path)
		if err != nil {
			return fmt.Errorf("unable to open 7z archive %s: %w", h.path, err)
		}
		h.sevenZipReader = r
	default:
		return fmt.Errorf("unsupported archive format for %s", h.path)
	}
	return nil
}

func (h *archiveHandle) close() {
	if h.zipReader != nil {
		h.zipReader.Close()
	}
	if h.sevenZipReader != nil {
		h.sevenZipReader.Close()
	}
}

// entries lists every regular-file entry in the archive.
func (h *archiveHandle) entries() []archiveEntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	var result []archiveEntryInfo
	switch h.format {
	case archiveFormatZip:
		for _, f := range h.zipReader.File {
			if f.FileInfo().IsDir() {
				continue
			}
			result = append(result, archiveEntryInfo{Name: normalizeEntryName(f.Name), Size: f.UncompressedSize64})
		}
	case archiveFormatSevenZip:
		for _, f := range h.sevenZipReader.File {
			if f.FileInfo().IsDir() {
				continue
			}
			result = append(result, archiveEntryInfo{Name: normalizeEntryName(f.Name), Size: f.UncompressedSize64})
		}
	}
	return result
}

// normalizeEntryName converts archive-internal path separators to
// forward slashes, matching the CatalogPart.name convention of §3.
func normalizeEntryName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

// entryLockedReader wraps the archive's underlying entry reader so that
// the archive mutex (acquired for sequential access) is released when
// the caller closes the stream, guaranteeing release on every exit path
// per the "archive entry aliasing" design note.
type entryLockedReader struct {
	io.ReadCloser
	handle *archiveHandle
}

func (r *entryLockedReader) Close() error {
	err := r.ReadCloser.Close()
	r.handle.mu.Unlock()
	return err
}

// openEntry acquires exclusive access to the archive and opens name for
// reading. The returned ReadCloser must be closed by the caller, which
// releases the archive for the next entry.
func (h *archiveHandle) openEntry(name string) (io.ReadCloser, error) {
	h.mu.Lock()

	switch h.format {
	case archiveFormatZip:
		for _, f := range h.zipReader.File {
			if normalizeEntryName(f.Name) == name {
				rc, err := f.Open()
				if err != nil {
					h.mu.Unlock()
					return nil, fmt.Errorf("unable to open zip entry %s: %w", name, err)
				}
				return &entryLockedReader{ReadCloser: rc, handle: h}, nil
			}
		}
	case archiveFormatSevenZip:
		for _, f := range h.sevenZipReader.File {
			if normalizeEntryName(f.Name) == name {
				rc, err := f.Open()
				if err != nil {
					h.mu.Unlock()
					return nil, fmt.Errorf("unable to open 7z entry %s: %w", name, err)
				}
				return &entryLockedReader{ReadCloser: rc, handle: h}, nil
			}
		}
	}

	h.mu.Unlock()
	return nil, fmt.Errorf("entry %s not found in archive %s", name, h.path)
}
