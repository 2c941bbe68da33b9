package nikoget

import (
	"context"
	"io"
	"strings"

	"github.com/xuanyeovo/nikoget/download"
	"github.com/xuanyeovo/nikoget/generic"
)

// TagFormat identifies a container tag family that a resolver can contribute extra
// fields to. The embedder merges Extra entries for the format it is writing.
type TagFormat string

const (
	TagFormatID3 TagFormat = "id3"
	TagFormatMP4 TagFormat = "mp4"
)

// ExtraTags is an open map of per-resolver tag contributions, keyed by tag family and
// then by field name within that family.
type ExtraTags map[TagFormat]map[string]string

// AudioInfo is the complete metadata of one audio item, produced by a resolver and
// consumed by the tag embedder. Immutable once returned by a resolver.
//
// Title is always set; Artists may be empty but never nil.
type AudioInfo struct {
	Title        string
	Artists      []string
	AlbumArtists []string
	Album        string
	DiscNumber   string
	TrackNumber  string
	TrackTotal   string
	Date         string
	Comment      string
	Lyrics       string
	Extra        ExtraTags
}

// ArtistString joins the artists the way multi-artist tag values are written.
func (i *AudioInfo) ArtistString() string {
	return strings.Join(i.Artists, "/")
}

func (i *AudioInfo) AlbumArtistString() string {
	return strings.Join(i.AlbumArtists, "/")
}

// DisplayName is "artist, artist - title", used for file naming and progress labels.
// With no artists it is just the title, not a dangling separator.
func (i *AudioInfo) DisplayName() string {
	if len(i.Artists) == 0 {
		return i.Title
	}
	return strings.Join(i.Artists, ", ") + " - " + i.Title
}

// ShortName is a compact label for progress reporting.
func (i *AudioInfo) ShortName() string {
	return i.Title
}

// ExtraFor returns the extra tag contributions for one tag family, never nil.
func (i *AudioInfo) ExtraFor(format TagFormat) map[string]string {
	if i.Extra == nil {
		return map[string]string{}
	}
	if m, ok := i.Extra[format]; ok {
		return m
	}
	return map[string]string{}
}

// Audio is one fully resolved, downloadable audio item.
type Audio interface {
	Info() *AudioInfo
	// Download builds a Task that will stream the audio into w. The task is not
	// started; w remains owned (and is eventually closed) by the caller.
	Download(ctx context.Context, w io.Writer) *download.Task
	// Cover returns the item's cover art capability, or None when the source has no
	// cover. Callers branch on the option rather than probing the concrete type.
	Cover() generic.Option[CoverProvider]
}

// CoverProvider fetches front cover art for an Audio item.
type CoverProvider interface {
	DownloadCover(ctx context.Context, w io.Writer) *download.Task
}

// ThinInfo is the cheap subset of metadata known before an upgrade.
type ThinInfo struct {
	// ID is an opaque resolver-specific key.
	ID      string
	Title   string
	Artists []string
	Album   string
}

func (i ThinInfo) DisplayName() string {
	if len(i.Artists) == 0 {
		return i.Title
	}
	return strings.Join(i.Artists, ", ") + " - " + i.Title
}

// ThinAudio is a lightweight stand-in used when a resolver enumerates many items (an
// album, a playlist) without paying for full metadata per item. It must be upgraded
// with ToFull before download or embedding.
type ThinAudio interface {
	ThinInfo() ThinInfo
	// ToFull performs the expensive metadata fetch and promotes this item to Audio.
	ToFull(ctx context.Context) (Audio, error)
}

// Entry is one item of a resolver's result: either already full or still thin.
type Entry struct {
	full Audio
	thin ThinAudio
}

func FullEntry(a Audio) Entry {
	return Entry{full: a}
}

func ThinEntry(t ThinAudio) Entry {
	return Entry{thin: t}
}

func (e Entry) IsThin() bool {
	return e.full == nil
}

// Label returns a human-readable name for disambiguation lists.
func (e Entry) Label() string {
	if e.full != nil {
		return e.full.Info().DisplayName()
	}
	return e.thin.ThinInfo().DisplayName()
}

// Upgrade returns the full item, fetching the remaining metadata if this entry is thin.
func (e Entry) Upgrade(ctx context.Context) (Audio, error) {
	if e.full != nil {
		return e.full, nil
	}
	return e.thin.ToFull(ctx)
}
