// Package token encodes internal numeric identifiers as opaque,
// non-sequential strings. This hides record ordering from clients; it is
// deliberately not a security boundary.
package token

import (
	"errors"
	"fmt"
	"math"

	hashids "github.com/speps/go-hashids/v2"
)

// ErrInvalidToken is returned by Decode for any string that was not
// produced by Encode, including truncated or tampered tokens.
var ErrInvalidToken = errors.New("token: invalid token")

// Codec is a reversible id obfuscator backed by hashids. The salt and
// minimum length are fixed at construction, so tokens stay stable across
// process restarts as long as the configuration does not change.
type Codec struct {
	h *hashids.HashID
}

// NewCodec builds a Codec with the given salt and minimum token length.
func NewCodec(salt string, minLength int) (*Codec, error) {
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = minLength

	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, fmt.Errorf("token: init hashids: %w", err)
	}
	return &Codec{h: h}, nil
}

// Encode turns an internal id into an opaque token.
func (c *Codec) Encode(id uint64) (string, error) {
	if id > math.MaxInt64 {
		return "", fmt.Errorf("token: id %d out of range", id)
	}
	tok, err := c.h.EncodeInt64([]int64{int64(id)})
	if err != nil {
		return "", fmt.Errorf("token: encode: %w", err)
	}
	return tok, nil
}

// Decode recovers the internal id from a token. Hashids re-encodes the
// decoded numbers and compares against the input, so a token that does
// not round-trip is rejected here rather than yielding a wrong id.
func (c *Codec) Decode(tok string) (uint64, error) {
	if tok == "" {
		return 0, ErrInvalidToken
	}
	ids, err := c.h.DecodeInt64WithError(tok)
	if err != nil || len(ids) != 1 || ids[0] < 0 {
		return 0, ErrInvalidToken
	}
	return uint64(ids[0]), nil
}
