package romsource

import (
	"hash"
	"io"
)

// hashingReader wraps an io.Reader so that every byte read is also fed
// into a hash.Hash, fusing digest computation with the forwarding of
// bytes to a consumer (the decompressor, or the caller copying a loose
// file). This is the single-read guarantee required by spec §4.1/§4.3:
// reading a PartRef once is sufficient to both compute its digest and
// deliver its bytes, which matters most for archive entries and remote
// blobs where a second read would mean re-decompressing or re-fetching.
//
// Modeled on the teacher's stream.NewHashedWriter, inverted to the
// reader side since part sources are read, not written.
type hashingReader struct {
	reader io.Reader
	hasher hash.Hash
}

// newHashingReader returns a reader that forwards bytes from r while
// also writing them into hasher.
func newHashingReader(r io.Reader, hasher hash.Hash) *hashingReader {
	return &hashingReader{reader: r, hasher: hasher}
}

func (h *hashingReader) Read(p []byte) (int, error) {
	n, err := h.reader.Read(p)
	if n > 0 {
		h.hasher.Write(p[:n])
	}
	return n, err
}
