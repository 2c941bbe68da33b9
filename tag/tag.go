// Package tag writes descriptor metadata, lyrics and cover art into downloaded media
// containers, dispatching on the container's MIME type.
package tag

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	nikoget "github.com/xuanyeovo/nikoget"
	"github.com/xuanyeovo/nikoget/generic"
)

// ErrUnsupportedFormat means the file's MIME type has no embedding support. It is a
// warning, not a failure: the file is left untouched and remains usable.
var ErrUnsupportedFormat = errors.New("unsupported container format")

var (
	id3MIMEs = generic.NewSet(
		"audio/mp3",
		"audio/mpeg",
		"audio/mpeg3",
		"audio/x-mpeg-3",
	)
	mp4MIMEs = generic.NewSet(
		"audio/mp4",
		"audio/x-m4a",
		"video/mp4",
	)
)

// Cover is front cover art ready to embed.
type Cover struct {
	Data []byte
	MIME string
}

// DefaultCoverLimit is the cover size above which a size-bounded re-encode is attempted.
const DefaultCoverLimit int64 = 1 << 20

type Embedder struct {
	logger     *zap.Logger
	bounder    CoverBounder
	coverLimit int64
}

type EmbedderOption func(*Embedder)

func WithLogger(logger *zap.Logger) EmbedderOption {
	return func(e *Embedder) {
		e.logger = logger
	}
}

// WithCoverBounder replaces the size-bounded re-encode collaborator.
func WithCoverBounder(b CoverBounder) EmbedderOption {
	return func(e *Embedder) {
		e.bounder = b
	}
}

// WithCoverLimit sets the cover size threshold in bytes; 0 disables bounding.
func WithCoverLimit(limit int64) EmbedderOption {
	return func(e *Embedder) {
		e.coverLimit = limit
	}
}

func NewEmbedder(opts ...EmbedderOption) *Embedder {
	e := &Embedder{
		logger:     zap.L().Named("tag"),
		coverLimit: DefaultCoverLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bounder == nil {
		e.bounder = NewResizeBounder(e.logger)
	}
	return e
}

// Patch mutates the file at path in place so that standard players show the descriptor's
// tags, attaching lyrics and cover art where the container supports them.
//
// Base tags and the lyrics/cover addendum are written as two sequential, independently
// durable saves, so a failing addendum never leaves the base tags half-written.
//
// An unrecognized MIME type performs no mutation and returns ErrUnsupportedFormat, which
// callers should treat as a warning.
func (e *Embedder) Patch(path string, mime string, info *nikoget.AudioInfo, cover *Cover) error {
	mime = strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))

	if cover != nil && e.coverLimit > 0 && int64(len(cover.Data)) > e.coverLimit {
		data, coverMIME := e.bounder.Bound(cover.Data, cover.MIME, e.coverLimit)
		cover = &Cover{Data: data, MIME: coverMIME}
	}

	switch {
	case id3MIMEs.Contains(mime):
		return e.patchID3(path, info, cover)
	case mp4MIMEs.Contains(mime):
		return e.patchMP4(path, info, cover)
	default:
		e.logger.Warn("cannot embed metadata", zap.String("path", path), zap.String("mime", mime))
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, mime)
	}
}

// trackValue renders the track number, with total when known ("03" or "03/12").
func trackValue(info *nikoget.AudioInfo) string {
	if info.TrackTotal != "" {
		return info.TrackNumber + "/" + info.TrackTotal
	}
	return info.TrackNumber
}
