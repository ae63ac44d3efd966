package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field length limits enforced on create and update.
const (
	MaxNameLen        = 200
	MaxExtensionLen   = 10
	MaxContentTypeLen = 50
	MaxCreatorLen     = 200
)

// AudioRecord is the durable description of one ingested audio file.
// The internal ID is never exposed to clients directly; the HTTP layer
// only ever sees its encoded token.
type AudioRecord struct {
	ID            uint64
	Name          string
	FileExtension string // normalized, with leading dot
	ContentType   string
	Creator       string
	CreatedAt     time.Time

	// Technical is filled from container parsing at upload time. Nil
	// when extraction was skipped.
	Technical *TechnicalMetadata
}

// TechnicalMetadata carries the fields derived from the audio container.
type TechnicalMetadata struct {
	Bitrate        int
	DurationMillis int64
	Title          string
	Album          string
	Performers     string
	MimeType       string
}

// UnknownTag is substituted for tag fields the container does not carry.
const UnknownTag = "Unknown"

// BlobKey derives the blob store key for this record. Keys are
// <id><extension>, so distinct records can never collide.
func (r *AudioRecord) BlobKey() string {
	return strconv.FormatUint(r.ID, 10) + r.FileExtension
}

// Validate checks field shape and length limits before a record is
// persisted.
func (r *AudioRecord) Validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("metadata: record name is empty")
	case len(r.Name) > MaxNameLen:
		return fmt.Errorf("metadata: record name exceeds %d characters", MaxNameLen)
	case r.FileExtension == "" || !strings.HasPrefix(r.FileExtension, "."):
		return fmt.Errorf("metadata: file extension %q must start with a dot", r.FileExtension)
	case len(r.FileExtension) > MaxExtensionLen:
		return fmt.Errorf("metadata: file extension exceeds %d characters", MaxExtensionLen)
	case r.ContentType == "" || len(r.ContentType) > MaxContentTypeLen:
		return fmt.Errorf("metadata: content type %q is empty or exceeds %d characters", r.ContentType, MaxContentTypeLen)
	case len(r.Creator) > MaxCreatorLen:
		return fmt.Errorf("metadata: creator exceeds %d characters", MaxCreatorLen)
	}
	return nil
}

// UpdatePatch is the partial update applied by the metadata-update
// operation. A blank Name keeps the record's existing name; Creator is
// always overwritten and is required by the service layer.
type UpdatePatch struct {
	Name    string
	Creator string
}

// Artwork job states. Jobs move pending → processing → completed|failed.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// ArtworkJob is one queued cover-art extraction for a committed record.
type ArtworkJob struct {
	ID           int64
	AudioID      uint64
	Status       string
	Attempts     int
	ErrorMessage string
	Thumbnails   []string // blob keys of rendered thumbnails
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
