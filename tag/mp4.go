package tag

import (
	"fmt"
	"strconv"

	mp4tag "github.com/zhaarey/go-mp4tag"
	"go.uber.org/zap"

	nikoget "github.com/xuanyeovo/nikoget"
)

func (e *Embedder) patchMP4(path string, info *nikoget.AudioInfo, cover *Cover) error {
	if err := e.writeMP4Base(path, info); err != nil {
		return err
	}
	if info.Lyrics == "" && cover == nil {
		return nil
	}
	return e.writeMP4Extras(path, info, cover)
}

func (e *Embedder) writeMP4Base(path string, info *nikoget.AudioInfo) error {
	tags := &mp4tag.MP4Tags{
		Title:       info.Title,
		Artist:      info.ArtistString(),
		Album:       info.Album,
		AlbumArtist: info.AlbumArtistString(),
		Date:        info.Date,
		Comment:     info.Comment,
		TrackNumber: int16(parseTagNumber(info.TrackNumber)),
		TrackTotal:  int16(parseTagNumber(info.TrackTotal)),
		DiscNumber:  int16(parseTagNumber(info.DiscNumber)),
	}
	if extra := info.ExtraFor(nikoget.TagFormatMP4); len(extra) > 0 {
		tags.Custom = extra
	}

	mp4, err := mp4tag.Open(path)
	if err != nil {
		return fmt.Errorf("open mp4 container: %w", err)
	}
	defer mp4.Close()
	if err := mp4.Write(tags, nil); err != nil {
		return fmt.Errorf("write mp4 tags: %w", err)
	}
	return nil
}

func (e *Embedder) writeMP4Extras(path string, info *nikoget.AudioInfo, cover *Cover) error {
	tags := &mp4tag.MP4Tags{
		Lyrics: info.Lyrics,
	}
	if cover != nil {
		if format, ok := mp4PictureFormat(cover.MIME); ok {
			tags.Pictures = []*mp4tag.MP4Picture{{Format: format, Data: cover.Data}}
		} else {
			// A bad cover write could corrupt the rest of the tags; a missing cover
			// is the lesser evil.
			e.logger.Warn("skipping cover art with unsupported encoding",
				zap.String("path", path), zap.String("mime", cover.MIME))
		}
	}
	if tags.Lyrics == "" && len(tags.Pictures) == 0 {
		return nil
	}

	mp4, err := mp4tag.Open(path)
	if err != nil {
		return fmt.Errorf("reopen mp4 container: %w", err)
	}
	defer mp4.Close()
	if err := mp4.Write(tags, nil); err != nil {
		return fmt.Errorf("write mp4 extras: %w", err)
	}
	return nil
}

// mp4PictureFormat maps a cover MIME type to the container's image encodings; MP4 covr
// atoms only support JPEG and PNG.
func mp4PictureFormat(mime string) (mp4tag.ImageType, bool) {
	switch mime {
	case "image/jpeg", "image/jpg":
		return mp4tag.ImageTypeJPEG, true
	case "image/png":
		return mp4tag.ImageTypePNG, true
	default:
		return mp4tag.ImageTypeAuto, false
	}
}

func parseTagNumber(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
