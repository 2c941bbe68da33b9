package tag

import (
	"bytes"
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
	"go.uber.org/zap"

	nikoget "github.com/xuanyeovo/nikoget"
)

func newTestEmbedder() *Embedder {
	return NewEmbedder(WithLogger(zap.NewNop()))
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require_.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestPatchUnknownMIMELeavesFileIntact(t *testing.T) {
	assert := assert_.New(t)

	original := []byte("definitely not a media container")
	path := writeTempFile(t, "payload.bin", original)

	info := &nikoget.AudioInfo{Title: "T", Artists: []string{"A"}}
	err := newTestEmbedder().Patch(path, "application/octet-stream", info, nil)
	assert.ErrorIs(err, ErrUnsupportedFormat)

	after, readErr := os.ReadFile(path)
	assert.NoError(readErr)
	assert.Equal(original, after, "an unrecognized mime must not mutate the file")
}

func TestPatchID3BaseTags(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)

	path := writeTempFile(t, "song.mp3", append([]byte{0xFF, 0xFB, 0x90, 0x00}, make([]byte, 8)...))
	info := &nikoget.AudioInfo{
		Title:       "T",
		Artists:     []string{"A"},
		Album:       "Alb",
		TrackNumber: "03",
	}
	require.NoError(newTestEmbedder().Patch(path, "audio/mpeg", info, nil))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(err)
	defer tag.Close()
	assert.Equal("T", tag.Title())
	assert.Equal("A", tag.Artist())
	assert.Equal("Alb", tag.Album())
	assert.Equal("03", tag.GetTextFrame(tag.CommonID("Track number/Position in set")).Text)
	assert.Empty(tag.GetFrames(tag.CommonID("Unsynchronised lyrics/text transcription")))
	assert.Empty(tag.GetFrames(tag.CommonID("Attached picture")))
}

func TestPatchID3LyricsAndCover(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)

	path := writeTempFile(t, "song.mp3", append([]byte{0xFF, 0xFB, 0x90, 0x00}, make([]byte, 8)...))
	cover := &Cover{Data: encodePNG(t, 8, 8), MIME: "image/png"}
	info := &nikoget.AudioInfo{
		Title:        "T",
		Artists:      []string{"A", "B"},
		AlbumArtists: []string{"A"},
		Album:        "Alb",
		TrackNumber:  "03",
		TrackTotal:   "12",
		DiscNumber:   "1",
		Date:         "2023/09/08",
		Lyrics:       "[00:00.00] la la la",
		Extra: nikoget.ExtraTags{
			nikoget.TagFormatID3: {"NETEASE-ID": "12345"},
		},
	}
	require.NoError(newTestEmbedder().Patch(path, "audio/mp3", info, cover))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(err)
	defer tag.Close()
	assert.Equal("A/B", tag.Artist())
	assert.Equal("03/12", tag.GetTextFrame(tag.CommonID("Track number/Position in set")).Text)
	assert.Equal("A", tag.GetTextFrame(tag.CommonID("Band/Orchestra/Accompaniment")).Text)

	lyrics := tag.GetFrames(tag.CommonID("Unsynchronised lyrics/text transcription"))
	require.Len(lyrics, 1)
	uslt, ok := lyrics[0].(id3v2.UnsynchronisedLyricsFrame)
	require.True(ok)
	assert.Equal("[00:00.00] la la la", uslt.Lyrics)

	pictures := tag.GetFrames(tag.CommonID("Attached picture"))
	require.Len(pictures, 1)
	apic, ok := pictures[0].(id3v2.PictureFrame)
	require.True(ok)
	assert.Equal("image/png", apic.MimeType)
	assert.Equal(cover.Data, apic.Picture, "a cover under the size limit embeds unchanged")

	var extras []id3v2.UserDefinedTextFrame
	for _, f := range tag.GetFrames(tag.CommonID("User defined text information frame")) {
		if udtf, ok := f.(id3v2.UserDefinedTextFrame); ok {
			extras = append(extras, udtf)
		}
	}
	require.Len(extras, 1)
	assert.Equal("NETEASE-ID", extras[0].Description)
	assert.Equal("12345", extras[0].Value)
}

func TestMP4PictureFormat(t *testing.T) {
	assert := assert_.New(t)

	_, ok := mp4PictureFormat("image/png")
	assert.True(ok)
	_, ok = mp4PictureFormat("image/jpeg")
	assert.True(ok)
	// Anything else is skipped rather than risking a corrupt covr atom.
	_, ok = mp4PictureFormat("image/bmp")
	assert.False(ok)
}

func TestTrackValue(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal("03", trackValue(&nikoget.AudioInfo{TrackNumber: "03"}))
	assert.Equal("03/12", trackValue(&nikoget.AudioInfo{TrackNumber: "03", TrackTotal: "12"}))
}

func TestResizeBounderSmallCoversUntouched(t *testing.T) {
	assert := assert_.New(t)

	b := NewResizeBounder(zap.NewNop())
	data := encodePNG(t, 4, 4)
	out, mime := b.Bound(data, "image/png", 1<<20)
	assert.Equal(data, out)
	assert.Equal("image/png", mime)
}

func TestResizeBounderGarbageUntouched(t *testing.T) {
	assert := assert_.New(t)

	b := NewResizeBounder(zap.NewNop())
	data := []byte("not an image at all, but quite long anyway")
	out, mime := b.Bound(data, "image/bmp", 10)
	assert.Equal(data, out)
	assert.Equal("image/bmp", mime)
}

func TestResizeBounderShrinksLargeCovers(t *testing.T) {
	assert := assert_.New(t)

	b := NewResizeBounder(zap.NewNop())
	data := encodePNG(t, 256, 256)
	limit := int64(len(data) / 4)
	out, mime := b.Bound(data, "image/png", limit)
	assert.Less(len(out), len(data))
	assert.Equal("image/jpeg", mime)
}

// encodePNG produces a noisy (poorly compressible) PNG.
func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	var buf bytes.Buffer
	require_.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
