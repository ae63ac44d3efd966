// Package ingest coordinates the two stores behind audio uploads: the
// blob store holding raw bytes and the metadata store holding records.
// The two are kept consistent with ordered writes plus a compensating
// delete; see UploadAudio.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/audiokeep/audiokeep/internal/blob"
	"github.com/audiokeep/audiokeep/internal/metadata"
	"github.com/audiokeep/audiokeep/internal/signature"
	"github.com/audiokeep/audiokeep/internal/tags"
	"github.com/audiokeep/audiokeep/internal/token"
)

// SupportedContentType is the only content type this service ingests.
// Adding a format means registering its signature and extending this
// check, nothing else.
const SupportedContentType = "audio/mpeg"

// Options tune the service; zero values get sensible defaults.
type Options struct {
	// MaxConcurrentUploads bounds parallel upload bodies in flight.
	MaxConcurrentUploads int64
	// SpoolDir receives temporary upload spools. Defaults to the OS
	// temp directory.
	SpoolDir string
	// ExtractArtwork enqueues a cover-art job after each commit.
	ExtractArtwork bool
}

// Service implements the ingestion operations over injected stores.
// Operations on different records are fully independent; the only
// ordering requirement is inside a single UploadAudio call.
type Service struct {
	validator *signature.Validator
	codec     *token.Codec
	blobs     blob.Store
	meta      metadata.Store
	extractor tags.Extractor
	logger    *zap.Logger

	uploadSem      *semaphore.Weighted
	spoolDir       string
	extractArtwork bool
}

// NewService wires the orchestrator. All collaborators are required.
func NewService(
	validator *signature.Validator,
	codec *token.Codec,
	blobs blob.Store,
	meta metadata.Store,
	extractor tags.Extractor,
	logger *zap.Logger,
	opts Options,
) *Service {
	if opts.MaxConcurrentUploads <= 0 {
		opts.MaxConcurrentUploads = 16
	}
	if opts.SpoolDir == "" {
		opts.SpoolDir = os.TempDir()
	}
	return &Service{
		validator:      validator,
		codec:          codec,
		blobs:          blobs,
		meta:           meta,
		extractor:      extractor,
		logger:         logger,
		uploadSem:      semaphore.NewWeighted(opts.MaxConcurrentUploads),
		spoolDir:       opts.SpoolDir,
		extractArtwork: opts.ExtractArtwork,
	}
}

// UploadAudio validates and commits one audio file, returning the
// opaque token for the new record.
//
// The write order is fixed: validate → blob put → metadata create. If
// the metadata create fails the blob is deleted again before the error
// is returned, so a failed upload is externally indistinguishable from
// one that never happened. A crash between the blob write and the
// compensating delete can leave an orphan blob; the reconciliation
// sweep reports those.
func (s *Service) UploadAudio(ctx context.Context, r io.Reader, fileName, declaredContentType string) (string, error) {
	start := time.Now()

	// Stateless input validation. Nothing below runs for bad requests.
	if declaredContentType != SupportedContentType {
		return "", ErrUnsupportedContentType
	}
	if fileName == "" || len(fileName) > metadata.MaxNameLen {
		return "", ErrUnsupportedFileType
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || len(ext) > metadata.MaxExtensionLen {
		return "", ErrUnsupportedFileType
	}

	if err := s.uploadSem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: acquire upload slot: %v", ErrStorage, err)
	}
	defer s.uploadSem.Release(1)

	// Classification needs only the first MaxPrefixLen bytes; the rest
	// of the body is never held in memory.
	prefix := make([]byte, s.validator.MaxPrefixLen())
	n, err := io.ReadFull(r, prefix)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("%w: read upload: %w", ErrStorage, err)
	}
	if n == 0 {
		return "", ErrUnsupportedFileType
	}
	if !s.validator.Match(ext, prefix[:n]) {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return "", ErrValidationFailed
	}

	// Spool the body so the container parser can seek it and the blob
	// write can stream from disk instead of memory.
	spoolPath, err := s.spool(prefix[:n], r, ext)
	if err != nil {
		return "", err
	}
	defer os.Remove(spoolPath)

	tech, err := s.extractor.Extract(ctx, spoolPath)
	if err != nil {
		if errors.Is(err, tags.ErrCorrupt) {
			uploadsTotal.WithLabelValues("rejected").Inc()
			return "", ErrValidationFailed
		}
		return "", fmt.Errorf("%w: extract metadata: %v", ErrStorage, err)
	}

	id, err := s.meta.NextID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: allocate id: %v", ErrStorage, err)
	}

	rec := &metadata.AudioRecord{
		ID:            id,
		Name:          fileName,
		FileExtension: ext,
		ContentType:   declaredContentType,
		CreatedAt:     time.Now().UTC(),
		Technical:     tech,
	}
	key := rec.BlobKey()

	spool, err := os.Open(spoolPath)
	if err != nil {
		return "", fmt.Errorf("%w: reopen spool: %v", ErrStorage, err)
	}
	size, err := s.blobs.Put(key, spool)
	spool.Close()
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: write blob %s: %v", ErrStorage, key, err)
	}

	if err := s.meta.Create(ctx, rec); err != nil {
		// Compensate: remove the blob so no orphan stays attributed to
		// a committed id. A failed delete is reported next to the
		// original cause, never instead of it.
		if delErr := s.blobs.Delete(key); delErr != nil {
			s.logger.Error("compensating blob delete failed, orphan blob left behind",
				zap.String("key", key),
				zap.NamedError("delete_error", delErr),
				zap.Error(err),
			)
		}
		uploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: create metadata for %s: %v", ErrStorage, key, err)
	}

	if s.extractArtwork {
		if _, err := s.meta.EnqueueArtworkJob(ctx, id); err != nil {
			// Artwork is best-effort decoration; the upload stands.
			s.logger.Warn("enqueue artwork job failed", zap.Uint64("id", id), zap.Error(err))
		}
	}

	tok, err := s.codec.Encode(id)
	if err != nil {
		return "", fmt.Errorf("%w: encode id %d: %v", ErrStorage, id, err)
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	uploadDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("audio committed",
		zap.Uint64("id", id),
		zap.String("key", key),
		zap.Int64("size", size),
	)
	return tok, nil
}

// spool writes prefix+rest to a temp file and returns its path.
func (s *Service) spool(prefix []byte, rest io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp(s.spoolDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("%w: create spool: %v", ErrStorage, err)
	}
	if _, err := f.Write(prefix); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: write spool: %v", ErrStorage, err)
	}
	if _, err := io.Copy(f, rest); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: write spool: %w", ErrStorage, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: close spool: %v", ErrStorage, err)
	}
	return f.Name(), nil
}

// FetchMetadata resolves a token to its record. A malformed token and
// an unknown id both come back as ErrNotFound so the API cannot be
// used to probe which tokens decode.
func (s *Service) FetchMetadata(ctx context.Context, tok string) (*metadata.AudioRecord, error) {
	id, err := s.codec.Decode(tok)
	if err != nil {
		return nil, ErrNotFound
	}
	rec, err := s.meta.Get(ctx, id)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get metadata %d: %v", ErrStorage, id, err)
	}
	return rec, nil
}

// FetchStream opens the stored bytes for a token. The caller must close
// the reader. A record whose blob has vanished is an integrity fault
// and reported as ErrInconsistentState, distinct from plain not-found.
func (s *Service) FetchStream(ctx context.Context, tok string) (io.ReadCloser, string, int64, error) {
	rec, err := s.FetchMetadata(ctx, tok)
	if err != nil {
		return nil, "", 0, err
	}

	rc, size, err := s.blobs.Get(rec.BlobKey())
	if errors.Is(err, blob.ErrNotFound) {
		s.logger.Error("blob missing for committed record",
			zap.Uint64("id", rec.ID),
			zap.String("key", rec.BlobKey()),
		)
		return nil, "", 0, ErrInconsistentState
	}
	if err != nil {
		return nil, "", 0, fmt.Errorf("%w: read blob %s: %v", ErrStorage, rec.BlobKey(), err)
	}
	return rc, rec.ContentType, size, nil
}

// UpdateMetadata sets creator and optionally renames the record. A
// blank name leaves the stored name untouched; creator is mandatory.
func (s *Service) UpdateMetadata(ctx context.Context, tok, name, creator string) error {
	if strings.TrimSpace(creator) == "" {
		return fmt.Errorf("%w: creator is required", ErrValidationFailed)
	}
	if len(creator) > metadata.MaxCreatorLen || len(name) > metadata.MaxNameLen {
		return fmt.Errorf("%w: field exceeds length limit", ErrValidationFailed)
	}

	id, err := s.codec.Decode(tok)
	if err != nil {
		return ErrNotFound
	}
	err = s.meta.Update(ctx, id, metadata.UpdatePatch{Name: name, Creator: creator})
	if errors.Is(err, metadata.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: update metadata %d: %v", ErrStorage, id, err)
	}
	return nil
}

// Entry is one row of the listing: the record plus its opaque token.
type Entry struct {
	Token  string
	Record *metadata.AudioRecord
}

// ListMetadata returns every committed record with its token, ordered
// by creation time.
func (s *Service) ListMetadata(ctx context.Context) ([]Entry, error) {
	records, err := s.meta.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list metadata: %v", ErrStorage, err)
	}
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		tok, err := s.codec.Encode(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: encode id %d: %v", ErrStorage, rec.ID, err)
		}
		entries = append(entries, Entry{Token: tok, Record: rec})
	}
	return entries, nil
}
