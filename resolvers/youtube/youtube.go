// Package youtube resolves YouTube watch URLs into audio-only downloads.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/kkdai/youtube/v2"

	nikoget "github.com/xuanyeovo/nikoget"
	"github.com/xuanyeovo/nikoget/download"
	"github.com/xuanyeovo/nikoget/generic"
)

const (
	resolverID      = "org.xuanyeovo.youtube"
	resolverVersion = "0.1.0"
)

type Resolver struct {
	client youtube.Client
}

func New() (*Resolver, error) {
	return &Resolver{}, nil
}

func (r *Resolver) ID() string {
	return resolverID
}

func (r *Resolver) Version() string {
	return resolverVersion
}

func (r *Resolver) MatchURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, err = extractVideoID(parsed)
	return err == nil
}

func (r *Resolver) Resolve(ctx context.Context, rawURL string) ([]nikoget.Entry, error) {
	logger := nikoget.Logger(ctx).Sugar().Named("youtube")

	video, err := r.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, nikoget.NewResolveError("cannot get video info: %v", err)
	}
	format, err := bestAudioFormat(video)
	if err != nil {
		return nil, err
	}
	logger.Debugw("selected format", "video_id", video.ID, "itag", format.ItagNo, "mime_type", format.MimeType)

	info := &nikoget.AudioInfo{
		Title:   video.Title,
		Artists: []string{video.Author},
		Extra: nikoget.ExtraTags{
			nikoget.TagFormatID3: {"YOUTUBE-ID": video.ID},
			nikoget.TagFormatMP4: {"YOUTUBE-ID": video.ID},
		},
	}
	if !video.PublishDate.IsZero() {
		info.Date = video.PublishDate.Format("2006/01/02")
	}

	item := &audio{
		resolver: r,
		info:     info,
		video:    video,
		format:   format,
	}
	return []nikoget.Entry{nikoget.FullEntry(item)}, nil
}

// bestAudioFormat picks the highest-bitrate format that is audio-only, falling back
// to the best muxed format when the video has no audio-only streams.
func bestAudioFormat(video *youtube.Video) (*youtube.Format, error) {
	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, nikoget.NewResolveError("video has no audio streams")
	}
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	if best == nil {
		best = &formats[0]
	}
	return best, nil
}

type audio struct {
	resolver *Resolver
	info     *nikoget.AudioInfo
	video    *youtube.Video
	format   *youtube.Format
}

func (a *audio) Info() *nikoget.AudioInfo {
	return a.info
}

func (a *audio) Download(ctx context.Context, w io.Writer) *download.Task {
	mimeType := strings.SplitN(a.format.MimeType, ";", 2)[0]
	transfer := download.StreamTransfer(ctx, mimeType, a.format.ContentLength, func(ctx context.Context) (io.ReadCloser, error) {
		stream, _, err := a.resolver.client.GetStreamContext(ctx, a.video, a.format)
		if err != nil {
			return nil, fmt.Errorf("cannot get stream: %w", err)
		}
		return stream, nil
	})
	return download.NewTask(transfer, w)
}

func (a *audio) Cover() generic.Option[nikoget.CoverProvider] {
	if len(a.video.Thumbnails) == 0 {
		return generic.None[nikoget.CoverProvider]()
	}
	return generic.Some[nikoget.CoverProvider](a)
}

func (a *audio) DownloadCover(ctx context.Context, w io.Writer) *download.Task {
	best := a.video.Thumbnails[0]
	for _, t := range a.video.Thumbnails[1:] {
		if t.Width*t.Height > best.Width*best.Height {
			best = t
		}
	}
	return download.NewTask(download.HTTPTransfer(ctx, nil, best.URL, nil), w)
}

// Extract video ID from a YouTube URL.
//
// Allowed URL formats:
//		http(s?)://(www|m).youtube.com/(watch|details)?v={VIDEO_ID}
//		http(s?)://(www|m).youtube.com/v/{VIDEO_ID}
//		http(s?)://youtu.be/{VIDEO_ID}
func extractVideoID(url *url.URL) (string, error) {
	var id string
	switch url.Hostname() {
	case "www.youtube.com":
		fallthrough
	case "m.youtube.com":
		if strings.HasPrefix(url.Path, "/v/") {
			id = strings.SplitN(url.Path, "/", 3)[2]
		} else if url.Path == "/watch" || url.Path == "/details" {
			if url.Query().Has("v") {
				id = url.Query().Get("v")
			} else {
				return "", fmt.Errorf("missing ?v= query parameter")
			}
		}
	case "youtu.be":
		id = strings.Trim(url.Path, "/")
	default:
		return "", fmt.Errorf("unrecognised hostname")
	}
	if id == "" {
		return "", fmt.Errorf("could not extract video ID")
	}
	return id, nil
}
