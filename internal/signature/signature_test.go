package signature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/audiokeep/audiokeep/internal/signature"
)

func TestMatchDefaultSignatures(t *testing.T) {
	v := signature.NewValidator(signature.DefaultSignatures()...)

	tests := []struct {
		name   string
		ext    string
		prefix []byte
		want   bool
	}{
		{"frame sync FF FB", ".mp3", []byte{0xFF, 0xFB, 0x90, 0x00}, true},
		{"frame sync FF F3", ".mp3", []byte{0xFF, 0xF3, 0x00}, true},
		{"frame sync FF F2", ".mp3", []byte{0xFF, 0xF2, 0x00}, true},
		{"id3 tag", ".mp3", []byte{'I', 'D', '3', 0x04, 0x00}, true},
		{"uppercase extension", ".MP3", []byte{0xFF, 0xFB}, true},
		{"plain text", ".mp3", []byte("test"), false},
		{"wrong extension", ".wav", []byte{0xFF, 0xFB}, false},
		{"near miss", ".mp3", []byte{0xFF, 0xFA}, false},
		{"empty buffer", ".mp3", nil, false},
		{"too short for id3", ".mp3", []byte{'I', 'D'}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Match(tt.ext, tt.prefix))
		})
	}
}

func TestMaxPrefixLen(t *testing.T) {
	v := signature.NewValidator(signature.DefaultSignatures()...)
	assert.Equal(t, 3, v.MaxPrefixLen()) // "ID3" is the longest default prefix

	empty := signature.NewValidator()
	assert.Equal(t, 0, empty.MaxPrefixLen())
	assert.False(t, empty.Match(".mp3", []byte{0xFF, 0xFB}))
}

func TestInjectedTable(t *testing.T) {
	v := signature.NewValidator(signature.Signature{Extension: ".WAV", Prefix: []byte("RIFF")})

	assert.True(t, v.Match(".wav", []byte("RIFFxxxx")))
	assert.True(t, v.Match(".WaV", []byte("RIFF")))
	assert.False(t, v.Match(".mp3", []byte{0xFF, 0xFB}))
}
