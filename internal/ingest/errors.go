package ingest

import "errors"

// Error kinds surfaced by the ingestion service. The HTTP layer maps
// these to status codes; callers match them with errors.Is.
var (
	// ErrUnsupportedContentType: the declared content type is not one
	// the service ingests.
	ErrUnsupportedContentType = errors.New("ingest: unsupported content type")

	// ErrUnsupportedFileType: the request is structurally unusable
	// before any content inspection (empty body, missing file name,
	// name over the length limit).
	ErrUnsupportedFileType = errors.New("ingest: unsupported file type")

	// ErrValidationFailed: the payload failed the magic-byte check or
	// the container parser reported it corrupt. Raised strictly before
	// anything is committed.
	ErrValidationFailed = errors.New("ingest: file validation failed")

	// ErrNotFound: the token is malformed or names no committed record.
	// The two cases are deliberately indistinguishable to clients.
	ErrNotFound = errors.New("ingest: audio not found")

	// ErrInconsistentState: a metadata row exists but its blob is
	// missing. This is a data-integrity fault for operators, never
	// retried automatically.
	ErrInconsistentState = errors.New("ingest: metadata present but blob missing")

	// ErrStorage wraps I/O failures from either store.
	ErrStorage = errors.New("ingest: storage failure")
)
