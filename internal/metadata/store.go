// Package metadata defines the structured store of audio records and
// its Postgres and in-memory implementations.
package metadata

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned for lookups of ids that do not exist.
	ErrNotFound = errors.New("metadata: record not found")
	// ErrDuplicate is returned by Create when the id is already taken.
	// Under correct id allocation this never happens; callers treat it
	// as an internal fault, not a client error.
	ErrDuplicate = errors.New("metadata: duplicate id")
)

// Store is the metadata contract the ingestion service writes through.
// All operations are scoped to a single record; implementations provide
// their own consistency for that scope.
type Store interface {
	// NextID allocates a fresh internal id. Two concurrent calls never
	// return the same value.
	NextID(ctx context.Context) (uint64, error)
	// Create persists a new record. The id must have been allocated
	// with NextID.
	Create(ctx context.Context, rec *AudioRecord) error
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id uint64) (*AudioRecord, error)
	// Update applies a partial update or returns ErrNotFound.
	Update(ctx context.Context, id uint64, patch UpdatePatch) error
	// Exists reports whether the id has a committed record.
	Exists(ctx context.Context, id uint64) (bool, error)
	// ListAll returns every record ordered by creation time ascending.
	ListAll(ctx context.Context) ([]*AudioRecord, error)

	// EnqueueArtworkJob queues a cover-art extraction for the record.
	EnqueueArtworkJob(ctx context.Context, audioID uint64) (int64, error)
	// NextPendingArtworkJob claims the oldest pending job, marking it
	// processing. Returns (nil, nil) when the queue is empty.
	NextPendingArtworkJob(ctx context.Context) (*ArtworkJob, error)
	// CompleteArtworkJob records the rendered thumbnail keys.
	CompleteArtworkJob(ctx context.Context, jobID int64, thumbnails []string) error
	// FailArtworkJob marks the job failed with a reason.
	FailArtworkJob(ctx context.Context, jobID int64, reason string) error
}
