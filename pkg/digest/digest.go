// Package digest provides the fixed-size SHA-1 content digest used
// throughout emuman to identify ROM part payloads independent of their
// name or location.
package digest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
)

// Size is the length, in bytes, of a Digest.
const Size = sha1.Size

// Digest is a 20-byte SHA-1 value. Two digests are equal iff their bytes
// are equal.
type Digest [Size]byte

// Zero is the Digest of no particular content; it is never a valid
// digest of any real payload and is used as a zero value sentinel.
var Zero Digest

// String formats the digest as 40 lowercase hexadecimal characters.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is the zero-value digest.
func (d Digest) IsZero() bool {
	return d == Zero
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.v2's Marshaler, so a Digest embeds in a
// catalog document as its hex string rather than a raw byte array.
func (d Digest) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.v2's Unmarshaler.
func (d *Digest) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	parsed, err := Parse(text)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Parse decodes a 40-character lowercase hexadecimal digest.
func Parse(text string) (Digest, error) {
	var d Digest
	if len(text) != Size*2 {
		return d, fmt.Errorf("invalid digest length: %d", len(text))
	}
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return d, fmt.Errorf("invalid digest encoding: %w", err)
	}
	copy(d[:], decoded)
	return d, nil
}

// Hasher returns a new streaming SHA-1 hasher suitable for use with
// Sum. Each scan task should allocate or reset its own hasher; Hasher
// values are not safe for concurrent use.
func Hasher() hash.Hash {
	return sha1.New()
}

// Sum finalizes a hasher into a Digest. The hasher must have been
// produced by Hasher (or any hash.Hash with a 20-byte sum).
func Sum(h hash.Hash) Digest {
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}
