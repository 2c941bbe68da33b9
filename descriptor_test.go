package nikoget

import (
	"context"
	"io"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	"github.com/xuanyeovo/nikoget/download"
	"github.com/xuanyeovo/nikoget/generic"
)

func TestAudioInfoNames(t *testing.T) {
	assert := assert_.New(t)

	info := &AudioInfo{Title: "Title", Artists: []string{"A", "B"}}
	assert.Equal("A/B", info.ArtistString())
	assert.Equal("A, B - Title", info.DisplayName())
	assert.Equal("Title", info.ShortName())

	// Artists may be empty; the display name degrades to the bare title rather than
	// a dangling separator.
	solo := &AudioInfo{Title: "Title", Artists: []string{}}
	assert.Equal("", solo.ArtistString())
	assert.Equal("Title", solo.DisplayName())
	assert.Equal("Title", ThinInfo{Title: "Title"}.DisplayName())
}

func TestAudioInfoExtraFor(t *testing.T) {
	assert := assert_.New(t)

	info := &AudioInfo{Title: "T"}
	assert.NotNil(info.ExtraFor(TagFormatID3))
	assert.Empty(info.ExtraFor(TagFormatID3))

	info.Extra = ExtraTags{TagFormatMP4: {"PROVIDER-ID": "xyz"}}
	assert.Equal("xyz", info.ExtraFor(TagFormatMP4)["PROVIDER-ID"])
	assert.Empty(info.ExtraFor(TagFormatID3))
}

type stubAudio struct {
	info *AudioInfo
}

func (a *stubAudio) Info() *AudioInfo {
	return a.info
}

func (a *stubAudio) Download(ctx context.Context, w io.Writer) *download.Task {
	return nil
}

func (a *stubAudio) Cover() generic.Option[CoverProvider] {
	return generic.None[CoverProvider]()
}

type stubThin struct {
	info ThinInfo
}

func (t *stubThin) ThinInfo() ThinInfo {
	return t.info
}

func (t *stubThin) ToFull(ctx context.Context) (Audio, error) {
	return &stubAudio{info: &AudioInfo{Title: t.info.Title, Artists: t.info.Artists, Album: t.info.Album}}, nil
}

func TestEntryUpgrade(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)

	thin := ThinEntry(&stubThin{info: ThinInfo{ID: "42", Title: "Song", Artists: []string{"A"}, Album: "Alb"}})
	assert.True(thin.IsThin())
	assert.Equal("A - Song", thin.Label())

	audio, err := thin.Upgrade(context.Background())
	require.NoError(err)
	assert.Equal("Song", audio.Info().Title)
	assert.Equal("Alb", audio.Info().Album)

	full := FullEntry(audio)
	assert.False(full.IsThin())
	again, err := full.Upgrade(context.Background())
	require.NoError(err)
	assert.Same(audio, again)
}
