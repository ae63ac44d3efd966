// Package tags extracts technical and descriptive metadata from audio
// containers. The parsing library is consumed as a black box: it either
// yields bitrate/duration/tag fields or reports the container corrupt.
package tags

import (
	"context"
	"errors"
	"strings"

	"github.com/simonhull/audiometa"

	"github.com/audiokeep/audiokeep/internal/metadata"
)

// ErrCorrupt means the container could not be parsed at all. The
// ingestion service treats this the same as a signature mismatch.
var ErrCorrupt = errors.New("tags: corrupt container")

// ErrNoArtwork is returned by CoverArt when the container carries no
// embedded images.
var ErrNoArtwork = errors.New("tags: no embedded artwork")

// Extractor parses a stored audio file.
type Extractor interface {
	Extract(ctx context.Context, path string) (*metadata.TechnicalMetadata, error)
	CoverArt(ctx context.Context, path string) (data []byte, mimeType string, err error)
}

// AudiometaExtractor implements Extractor on the audiometa library.
type AudiometaExtractor struct{}

var _ Extractor = AudiometaExtractor{}

// Extract opens the container and maps its properties onto
// TechnicalMetadata. Tag fields the file does not carry become
// "Unknown" rather than empty strings.
func (AudiometaExtractor) Extract(ctx context.Context, path string) (*metadata.TechnicalMetadata, error) {
	f, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, ErrCorrupt
	}
	defer f.Close()

	return &metadata.TechnicalMetadata{
		Bitrate:        f.Audio.Bitrate / 1000, // kbps, as clients expect
		DurationMillis: f.Audio.Duration.Milliseconds(),
		Title:          orUnknown(f.Tags.Title),
		Album:          orUnknown(f.Tags.Album),
		Performers:     orUnknown(strings.Join(f.Tags.Performers, ",")),
		MimeType:       mimeType(f.Format),
	}, nil
}

// CoverArt returns the first embedded image in the container.
func (AudiometaExtractor) CoverArt(ctx context.Context, path string) ([]byte, string, error) {
	f, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, "", ErrCorrupt
	}
	defer f.Close()

	artwork, err := f.ExtractArtwork()
	if err != nil || len(artwork) == 0 {
		return nil, "", ErrNoArtwork
	}
	return artwork[0].Data, artwork[0].MIMEType, nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return metadata.UnknownTag
	}
	return s
}

func mimeType(format audiometa.Format) string {
	switch format {
	case audiometa.FormatMP3:
		return "audio/mpeg"
	case audiometa.FormatFLAC:
		return "audio/flac"
	case audiometa.FormatM4A, audiometa.FormatM4B:
		return "audio/mp4"
	case audiometa.FormatOgg, audiometa.FormatOpus:
		return "audio/ogg"
	case audiometa.FormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
