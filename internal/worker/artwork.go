package worker

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	"github.com/audiokeep/audiokeep/internal/blob"
)

// thumbnail sizes rendered for every extracted cover image.
var thumbnailSizes = []struct {
	name  string
	width int
}{
	{"small", 150},
	{"medium", 400},
	{"large", 800},
}

// Renderer turns embedded cover art into JPEG thumbnails stored next
// to the source blob as <key>-cover-<size>.jpg.
type Renderer struct {
	blobs blob.Store
}

func NewRenderer(blobs blob.Store) *Renderer {
	return &Renderer{blobs: blobs}
}

// Render decodes the image bytes and writes one thumbnail per size,
// returning the blob keys written. Width is capped, height follows the
// aspect ratio.
func (r *Renderer) Render(baseKey string, data []byte) ([]string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode cover image: %w", err)
	}

	keys := make([]string, 0, len(thumbnailSizes))
	for _, size := range thumbnailSizes {
		thumb := imaging.Resize(img, size.width, 0, imaging.Lanczos)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
			return nil, fmt.Errorf("encode %s thumbnail: %w", size.name, err)
		}

		key := fmt.Sprintf("%s-cover-%s.jpg", baseKey, size.name)
		if _, err := r.blobs.Put(key, &buf); err != nil {
			return nil, fmt.Errorf("store %s thumbnail: %w", size.name, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
