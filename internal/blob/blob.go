// Package blob provides durable key→bytes storage for audio payloads.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("blob: not found")

// Store is the key→bytes contract the ingestion service writes through.
type Store interface {
	// Put streams r into the blob under key. The write is atomic from a
	// reader's perspective: the key resolves either to nothing or to the
	// complete payload, never to a partial write.
	Put(key string, r io.Reader) (int64, error)
	// Get opens the blob for reading and reports its size. The caller
	// must close the returned ReadCloser.
	Get(key string) (io.ReadCloser, int64, error)
	// Delete removes the blob. Deleting an absent key is a no-op.
	Delete(key string) error
	// Exists reports whether the key currently resolves to a blob.
	Exists(key string) bool
	// Keys lists every committed blob key, for reconciliation sweeps.
	Keys() ([]string, error)
}

// FilesystemStore keeps blobs as flat files under a single directory.
// Writes go to a ".tmp" sibling first and are fsynced before an atomic
// rename, so a crash mid-write leaves only a temp file that Keys()
// ignores and a sweep can clean up.
type FilesystemStore struct {
	dataDir string
}

var _ Store = (*FilesystemStore)(nil)

// NewFilesystemStore creates the data directory if needed.
func NewFilesystemStore(dataDir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("blob: create data dir %s: %w", dataDir, err)
	}
	return &FilesystemStore{dataDir: dataDir}, nil
}

func (s *FilesystemStore) Put(key string, r io.Reader) (int64, error) {
	fullPath := filepath.Join(s.dataDir, key)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("blob: create temp file: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("blob: write %s: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("blob: fsync %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("blob: close %s: %w", key, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("blob: rename %s: %w", key, err)
	}
	return size, nil
}

func (s *FilesystemStore) Get(key string) (io.ReadCloser, int64, error) {
	fullPath := filepath.Join(s.dataDir, key)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("blob: open %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("blob: stat %s: %w", key, err)
	}
	return f, info.Size(), nil
}

func (s *FilesystemStore) Delete(key string) error {
	err := os.Remove(filepath.Join(s.dataDir, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	return nil
}

func (s *FilesystemStore) Exists(key string) bool {
	_, err := os.Stat(filepath.Join(s.dataDir, key))
	return err == nil
}

func (s *FilesystemStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("blob: list data dir: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		keys = append(keys, e.Name())
	}
	return keys, nil
}

// FullPath returns the on-disk location of a committed blob. The tag
// parser and the artwork worker need a real path rather than a reader.
func (s *FilesystemStore) FullPath(key string) string {
	return filepath.Join(s.dataDir, key)
}
