package blob_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiokeep/audiokeep/internal/blob"
)

func newStore(t *testing.T) *blob.FilesystemStore {
	t.Helper()
	s, err := blob.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newStore(t)
	payload := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}

	size, err := s.Put("7.mp3", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)
	assert.True(t, s.Exists("7.mp3"))

	rc, gotSize, err := s.Get("7.mp3")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(len(payload)), gotSize)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestGetMissingKey(t *testing.T) {
	s := newStore(t)

	_, _, err := s.Get("nope.mp3")
	assert.ErrorIs(t, err, blob.ErrNotFound)
	assert.False(t, s.Exists("nope.mp3"))
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newStore(t)

	_, err := s.Put("9.mp3", bytes.NewReader([]byte("data")))
	require.NoError(t, err)

	require.NoError(t, s.Delete("9.mp3"))
	assert.False(t, s.Exists("9.mp3"))

	// Deleting again must not error.
	require.NoError(t, s.Delete("9.mp3"))
}

func TestPutLeavesNoTempFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := blob.NewFilesystemStore(dir)
	require.NoError(t, err)

	_, err = s.Put("bad.mp3", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed write must not leave files behind")
	assert.False(t, s.Exists("bad.mp3"))
}

func TestKeysSkipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := blob.NewFilesystemStore(dir)
	require.NoError(t, err)

	_, err = s.Put("1.mp3", bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	_, err = s.Put("2.mp3", bytes.NewReader([]byte("b")))
	require.NoError(t, err)

	// Simulate a crash mid-write: a stray temp file on disk.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3.mp3.tmp"), []byte("partial"), 0o640))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1.mp3", "2.mp3"}, keys)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}
