// Package romsource implements the uniform "part source" read
// abstraction of spec §4.3: a single Ref type carrying one of
// {LooseFile, ArchiveEntry, RemoteBlob, ByteSlice}, each openable as a
// plain byte stream regardless of where the bytes actually live. It is
// modeled on the teacher's tagged-variant approach to polymorphic
// content (pkg/synchronization/core/entry.go's EntryKind switch, and the
// "polymorphic part sources" design note), avoiding a virtual
// inheritance hierarchy in favor of dispatch-by-match on a Kind field.
package romsource

import (
	"fmt"
	"io"
	"os"

	"github.com/tuffy/emuman/pkg/digest"
)

// Kind identifies which variant a Ref represents.
type Kind int

const (
	// LooseFile is a regular file on disk.
	LooseFile Kind = iota
	// ArchiveEntry is an entry inside a zip or 7z archive.
	ArchiveEntry
	// RemoteBlob is a URL-backed blob, fetched to a temp file on first read.
	RemoteBlob
	// ByteSlice is a contiguous sub-range of another part's bytes.
	ByteSlice
)

// Ref is a locator for a byte sequence, per spec §3's PartRef. It
// carries its byte length when known cheaply (loose files, archive
// entries as listed from the archive, sliced sub-ranges); a remote
// blob's length is unknown until Length fetches it.
type Ref struct {
	kind Kind

	// LooseFile / ArchiveEntry(archive path)
	path string
	// ArchiveEntry entry name
	entryName string
	archiveFmt archiveFormat
	// RemoteBlob
	url string
	// ByteSlice
	parent      *Ref
	offset      uint64
	sliceLength uint64

	knownSize int64 // -1 if not known without opening
}

// NewLooseFile creates a Ref for a regular file on disk.
func NewLooseFile(path string, size int64) Ref {
	return Ref{kind: LooseFile, path: path, knownSize: size}
}

// NewZipEntry creates a Ref for an entry inside a zip archive.
func NewZipEntry(archivePath, entryName string, size int64) Ref {
	return Ref{kind: ArchiveEntry, path: archivePath, entryName: entryName, archiveFmt: archiveFormatZip, knownSize: size}
}

// NewSevenZipEntry creates a Ref for an entry inside a 7z archive.
func NewSevenZipEntry(archivePath, entryName string, size int64) Ref {
	return Ref{kind: ArchiveEntry, path: archivePath, entryName: entryName, archiveFmt: archiveFormatSevenZip, knownSize: size}
}

// NewRemoteBlob creates a Ref for a URL-backed blob. Its size is
// unknown until it is fetched.
func NewRemoteBlob(url string) Ref {
	return Ref{kind: RemoteBlob, url: url, knownSize: -1}
}

// NewByteSlice creates a Ref for a contiguous sub-range of parent's
// bytes, used by the split engine (§4.8) to address individual
// candidate slices of a combined blob without copying data up front.
func NewByteSlice(parent *Ref, offset, length uint64) Ref {
	return Ref{kind: ByteSlice, parent: parent, offset: offset, sliceLength: length, knownSize: int64(length)}
}

// Kind reports which variant this Ref is.
func (r Ref) Kind() Kind { return r.kind }

// Path returns the on-disk path backing a LooseFile or ArchiveEntry Ref
// (the archive path, for ArchiveEntry). It is used by the planner to
// test hard-link eligibility against the destination's device ID.
func (r Ref) Path() string {
	switch r.kind {
	case LooseFile:
		return r.path
	case ArchiveEntry:
		return r.path
	case ByteSlice:
		if r.parent != nil {
			return r.parent.Path()
		}
	}
	return ""
}

// Equal reports whether two Refs denote the same locator, used by the
// Datum Index to keep insertion idempotent on (digest, PartRef) pairs
// per spec §3.
func (r Ref) Equal(other Ref) bool {
	if r.kind != other.kind {
		return false
	}
	switch r.kind {
	case LooseFile:
		return r.path == other.path
	case ArchiveEntry:
		return r.path == other.path && r.entryName == other.entryName
	case RemoteBlob:
		return r.url == other.url
	case ByteSlice:
		return r.offset == other.offset && r.sliceLength == other.sliceLength &&
			r.parent != nil && other.parent != nil && r.parent.Equal(*other.parent)
	}
	return false
}

// String renders a human-readable locator, used in log messages and
// plan descriptions.
func (r Ref) String() string {
	switch r.kind {
	case LooseFile:
		return r.path
	case ArchiveEntry:
		return fmt.Sprintf("%s!%s", r.path, r.entryName)
	case RemoteBlob:
		return r.url
	case ByteSlice:
		return fmt.Sprintf("%s[%d:%d]", r.parent, r.offset, r.offset+r.sliceLength)
	}
	return "<invalid part ref>"
}

// Length returns the byte length of the part. A remote blob without a
// known length is fetched to resolve it; any other Ref without a known
// length yields an error, since archive headers are not reopened here.
func (r Ref) Length() (uint64, error) {
	if r.knownSize >= 0 {
		return uint64(r.knownSize), nil
	}
	switch r.kind {
	case RemoteBlob:
		local, err := fetchRemoteBlob(r.url)
		if err != nil {
			return 0, err
		}
		info, err := os.Stat(local)
		if err != nil {
			return 0, fmt.Errorf("unable to stat fetched blob: %w", err)
		}
		return uint64(info.Size()), nil
	}
	return 0, fmt.Errorf("unable to resolve length for %s", r)
}

// Open returns a readable stream over the part's bytes. Archive entries
// are opened lazily against their shared archive handle; remote blobs
// are fetched (once, process-wide) to a temporary file and then treated
// as a loose file for this and all subsequent reads.
func (r Ref) Open() (io.ReadCloser, error) {
	switch r.kind {
	case LooseFile:
		f, err := os.Open(r.path)
		if err != nil {
			return nil, fmt.Errorf("unable to open %s: %w", r.path, err)
		}
		return f, nil
	case ArchiveEntry:
		handle, err := acquireArchive(r.path, r.archiveFmt)
		if err != nil {
			return nil, err
		}
		return handle.openEntry(r.entryName)
	case RemoteBlob:
		local, err := fetchRemoteBlob(r.url)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(local)
		if err != nil {
			return nil, fmt.Errorf("unable to open fetched blob: %w", err)
		}
		return f, nil
	case ByteSlice:
		if r.parent == nil {
			return nil, fmt.Errorf("byte slice has no parent")
		}
		parentPath := r.parent.Path()
		if parentPath == "" {
			return nil, fmt.Errorf("byte slice parent %s is not directly addressable", r.parent)
		}
		f, err := os.Open(parentPath)
		if err != nil {
			return nil, fmt.Errorf("unable to open %s: %w", parentPath, err)
		}
		return &sectionReadCloser{
			SectionReader: io.NewSectionReader(f, int64(r.offset), int64(r.sliceLength)),
			closer:        f,
		}, nil
	}
	return nil, fmt.Errorf("unsupported part reference kind")
}

// sectionReadCloser adapts an io.SectionReader over an *os.File into an
// io.ReadCloser whose Close releases the underlying file descriptor,
// rather than the no-op io.NopCloser would give it.
type sectionReadCloser struct {
	*io.SectionReader
	closer *os.File
}

func (s *sectionReadCloser) Close() error {
	return s.closer.Close()
}

// Digest opens the part exactly once and computes its SHA-1 digest,
// fusing the read with hashing so that archived or remote data is never
// read twice (spec §4.1's "digest-or-read fusion").
func (r Ref) Digest() (digest.Digest, uint64, error) {
	stream, err := r.Open()
	if err != nil {
		return digest.Digest{}, 0, err
	}
	defer stream.Close()

	hasher := digest.Hasher()
	copied, err := io.Copy(hasher, stream)
	if err != nil {
		return digest.Digest{}, 0, fmt.Errorf("unable to read %s: %w", r, err)
	}
	return digest.Sum(hasher), uint64(copied), nil
}

// DigestAndForward opens the part once and copies its bytes to w while
// simultaneously computing its digest, for callers that need both the
// digest and the bytes from a single pass.
func (r Ref) DigestAndForward(w io.Writer) (digest.Digest, uint64, error) {
	stream, err := r.Open()
	if err != nil {
		return digest.Digest{}, 0, err
	}
	defer stream.Close()

	hasher := digest.Hasher()
	copied, err := io.Copy(w, newHashingReader(stream, hasher))
	if err != nil {
		return digest.Digest{}, 0, fmt.Errorf("unable to read %s: %w", r, err)
	}
	return digest.Sum(hasher), uint64(copied), nil
}
