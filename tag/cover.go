package tag

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

// CoverBounder is the size-bounded re-encode collaborator: it tries to bring cover bytes
// under limit, returning the (possibly re-encoded) bytes and their MIME type. It is best
// effort and returns its input unchanged on any failure.
type CoverBounder interface {
	Bound(data []byte, mime string, limit int64) ([]byte, string)
}

type resizeBounder struct {
	logger  *zap.Logger
	quality int
}

// NewResizeBounder bounds covers by progressively downscaling and re-encoding as JPEG.
func NewResizeBounder(logger *zap.Logger) CoverBounder {
	if logger == nil {
		logger = zap.L()
	}
	return &resizeBounder{logger: logger.Named("cover"), quality: 85}
}

func (b *resizeBounder) Bound(data []byte, mime string, limit int64) ([]byte, string) {
	if limit <= 0 || int64(len(data)) <= limit {
		return data, mime
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		b.logger.Warn("cannot decode cover art, keeping original", zap.Error(err))
		return data, mime
	}

	best := data
	bestMIME := mime
	width := uint(img.Bounds().Dx())
	for attempt := 0; attempt < 5; attempt++ {
		scaled := resize.Resize(width, 0, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: b.quality}); err != nil {
			b.logger.Warn("cover re-encode failed, keeping original", zap.Error(err))
			return data, mime
		}
		if buf.Len() < len(best) {
			best = buf.Bytes()
			bestMIME = "image/jpeg"
		}
		if int64(buf.Len()) <= limit {
			break
		}
		width = width * 7 / 10
		if width == 0 {
			break
		}
	}
	return best, bestMIME
}
