package tag

import (
	"fmt"

	"github.com/bogem/id3v2/v2"
	"go.uber.org/zap"

	nikoget "github.com/xuanyeovo/nikoget"
)

func (e *Embedder) patchID3(path string, info *nikoget.AudioInfo, cover *Cover) error {
	if err := e.writeID3Base(path, info); err != nil {
		return err
	}
	if info.Lyrics == "" && cover == nil {
		return nil
	}
	return e.writeID3Extras(path, info, cover)
}

func (e *Embedder) writeID3Base(path string, info *nikoget.AudioInfo) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag: %w", err)
	}
	defer tag.Close()
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	tag.SetTitle(info.Title)
	tag.SetAlbum(info.Album)
	tag.SetArtist(info.ArtistString())
	tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), trackValue(info))
	if s := info.AlbumArtistString(); s != "" {
		tag.AddTextFrame(tag.CommonID("Band/Orchestra/Accompaniment"), tag.DefaultEncoding(), s)
	}
	if info.DiscNumber != "" {
		tag.AddTextFrame(tag.CommonID("Part of a set"), tag.DefaultEncoding(), info.DiscNumber)
	}
	if info.Date != "" {
		tag.SetYear(info.Date)
	}
	if info.Comment != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     info.Comment,
		})
	}
	for key, value := range info.ExtraFor(nikoget.TagFormatID3) {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: key,
			Value:       value,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}
	return nil
}

func (e *Embedder) writeID3Extras(path string, info *nikoget.AudioInfo, cover *Cover) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("reopen id3 tag: %w", err)
	}
	defer tag.Close()

	if info.Lyrics != "" {
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          "eng",
			ContentDescriptor: "Lyrics",
			Lyrics:            info.Lyrics,
		})
	}
	if cover != nil {
		e.logger.Debug("embedding cover art", zap.String("path", path), zap.String("mime", cover.MIME))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    cover.MIME,
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     cover.Data,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 extras: %w", err)
	}
	return nil
}
