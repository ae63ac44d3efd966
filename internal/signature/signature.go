// Package signature classifies uploaded byte buffers by magic-byte prefix.
package signature

import (
	"bytes"
	"strings"
)

// Signature pairs a file extension with the magic bytes a matching
// file must start with.
type Signature struct {
	Extension string // including leading dot, e.g. ".mp3"
	Prefix    []byte
}

// DefaultSignatures covers the MP3 variants we accept: bare MPEG frame
// sync headers and files that open with an ID3v2 tag.
func DefaultSignatures() []Signature {
	return []Signature{
		{Extension: ".mp3", Prefix: []byte{0xFF, 0xFB}},
		{Extension: ".mp3", Prefix: []byte{0xFF, 0xF3}},
		{Extension: ".mp3", Prefix: []byte{0xFF, 0xF2}},
		{Extension: ".mp3", Prefix: []byte{0x49, 0x44, 0x33}}, // "ID3"
	}
}

// Validator matches (extension, prefix) pairs against a fixed signature
// table. The table is set at construction and never mutated, so a single
// Validator is safe for concurrent use.
type Validator struct {
	sigs         []Signature
	maxPrefixLen int
}

// NewValidator builds a Validator from the given signatures. Extensions
// are normalized to lower case.
func NewValidator(sigs ...Signature) *Validator {
	v := &Validator{sigs: make([]Signature, 0, len(sigs))}
	for _, s := range sigs {
		s.Extension = strings.ToLower(s.Extension)
		v.sigs = append(v.sigs, s)
		if len(s.Prefix) > v.maxPrefixLen {
			v.maxPrefixLen = len(s.Prefix)
		}
	}
	return v
}

// MaxPrefixLen returns the number of leading bytes a caller must supply
// to Match for every registered signature to be checkable.
func (v *Validator) MaxPrefixLen() int {
	return v.maxPrefixLen
}

// Match reports whether the buffer's leading bytes identify a supported
// file of the given extension. The extension comparison is
// case-insensitive; the prefix comparison is exact. A buffer shorter
// than a signature's prefix simply does not match that signature.
func (v *Validator) Match(ext string, prefix []byte) bool {
	ext = strings.ToLower(ext)
	for _, s := range v.sigs {
		if s.Extension != ext {
			continue
		}
		if len(prefix) < len(s.Prefix) {
			continue
		}
		if bytes.Equal(prefix[:len(s.Prefix)], s.Prefix) {
			return true
		}
	}
	return false
}
