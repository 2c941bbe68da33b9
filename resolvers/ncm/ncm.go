// Package ncm resolves NetEase Cloud Music song and album share URLs.
package ncm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	nikoget "github.com/xuanyeovo/nikoget"
	"github.com/xuanyeovo/nikoget/download"
	"github.com/xuanyeovo/nikoget/generic"
)

const (
	resolverID      = "org.xuanyeovo.ncm"
	resolverVersion = "0.1.0"

	userAgent = "Mozilla/5.0 (Linux; Android 13; 23054RA19C Build/TP1A.220624.014) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/111.0.5563.116 Mobile Safari/537.36"
)

// The mobile pages ship their data as a serialized store inside a script tag.
const dataExtractorPattern = `window\.REDUX_STATE = ({.*});`

var hosts = generic.NewSet("music.163.com", "y.music.163.com")

type Resolver struct {
	client        *http.Client
	dataExtractor *regexp.Regexp
}

func New() (*Resolver, error) {
	dataExtractor, err := regexp.Compile(dataExtractorPattern)
	if err != nil {
		return nil, fmt.Errorf("compile page data extractor: %w", err)
	}
	return &Resolver{
		client:        &http.Client{Timeout: 30 * time.Second},
		dataExtractor: dataExtractor,
	}, nil
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
	return hosts.Contains(parsed.Host)
}

func (r *Resolver) Resolve(ctx context.Context, rawURL string) ([]nikoget.Entry, error) {
	target, err := parseTarget(rawURL)
	if err != nil {
		return nil, err
	}
	switch target.kind {
	case targetSong:
		audio, err := r.fetchSong(ctx, target.id)
		if err != nil {
			return nil, err
		}
		return []nikoget.Entry{nikoget.FullEntry(audio)}, nil
	case targetAlbum:
		return r.resolveAlbum(ctx, target.id)
	default:
		return nil, nikoget.NewResolveError("unsupported URL path")
	}
}

type targetKind int

const (
	targetSong targetKind = iota
	targetAlbum
)

type target struct {
	kind targetKind
	id   string
}

// parseTarget classifies a share URL. Both desktop and mobile share paths are accepted:
// /song?id=N, /m/song?id=N, /album?id=N, /m/album?id=N.
func parseTarget(rawURL string) (target, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return target{}, nikoget.NewResolveError("malformed URL: %v", err)
	}
	path := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(path) == 0 || path[0] == "" {
		return target{}, nikoget.NewResolveError("incomplete URL path")
	}
	if path[0] == "m" {
		// Mobile share page
		path = path[1:]
		if len(path) == 0 {
			return target{}, nikoget.NewResolveError("incomplete mobile share URL")
		}
	}
	id := parsed.Query().Get("id")
	switch path[0] {
	case "song":
		if id == "" {
			return target{}, nikoget.NewResolveError("query field 'id' is missing")
		}
		return target{kind: targetSong, id: id}, nil
	case "album":
		if id == "" {
			return target{}, nikoget.NewResolveError("query field 'id' is missing")
		}
		return target{kind: targetAlbum, id: id}, nil
	default:
		return target{}, nikoget.NewResolveError("unsupported URL path %q", parsed.Path)
	}
}

type songPage struct {
	Song struct {
		Name string `json:"name"`
		Al   struct {
			ID     json.Number `json:"id"`
			Name   string      `json:"name"`
			PicURL string      `json:"picUrl"`
		} `json:"al"`
		Ar []struct {
			Name string `json:"name"`
		} `json:"ar"`
	} `json:"Song"`
}

type albumPage struct {
	Album struct {
		Album struct {
			Name        string `json:"name"`
			PublishTime int64  `json:"publishTime"`
			Artists     []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Songs []struct {
				ID       json.Number `json:"id"`
				SongName string      `json:"songName"`
			} `json:"songs"`
		} `json:"album"`
	} `json:"Album"`
}

type albumInfo struct {
	name        string
	artist      string
	publishDate string
	songIDs     []string
	songNames   []string
}

func (r *Resolver) fetchSong(ctx context.Context, id string) (nikoget.Audio, error) {
	logger := nikoget.Logger(ctx).Sugar().Named("ncm")
	logger.Debugw("fetching audio info", "id", id)

	var page songPage
	if err := r.fetchPageData(ctx, "https://music.163.com/m/song?id="+url.QueryEscape(id), &page); err != nil {
		return nil, err
	}
	if page.Song.Name == "" {
		return nil, nikoget.NewResolveError("cannot obtain audio meta info from the page")
	}

	artists := make([]string, 0, len(page.Song.Ar))
	for _, ar := range page.Song.Ar {
		artists = append(artists, ar.Name)
	}

	info := &nikoget.AudioInfo{
		Title:       page.Song.Name,
		Artists:     artists,
		Album:       page.Song.Al.Name,
		TrackNumber: "01",
		Extra: nikoget.ExtraTags{
			nikoget.TagFormatID3: {"NETEASE-ID": id},
			nikoget.TagFormatMP4: {"NETEASE-ID": id},
		},
	}

	if album, err := r.fetchAlbum(ctx, page.Song.Al.ID.String()); err != nil {
		logger.Warnw("cannot fetch album info", "album_id", page.Song.Al.ID, "error", err)
	} else {
		for i, songID := range album.songIDs {
			if songID == id {
				info.TrackNumber = fmt.Sprintf("%02d", i+1)
				break
			}
		}
		info.TrackTotal = fmt.Sprintf("%d", len(album.songIDs))
		info.AlbumArtists = []string{album.artist}
		info.Date = album.publishDate
	}

	if lyrics, err := r.fetchLyrics(ctx, id); err != nil {
		logger.Warnw("cannot fetch lyrics", "id", id, "error", err)
	} else {
		info.Lyrics = lyrics
	}

	return &audio{resolver: r, id: id, info: info, coverURL: page.Song.Al.PicURL}, nil
}

func (r *Resolver) resolveAlbum(ctx context.Context, id string) ([]nikoget.Entry, error) {
	album, err := r.fetchAlbum(ctx, id)
	if err != nil {
		return nil, err
	}
	// Albums produce thin descriptors: full metadata is one more page fetch per song,
	// paid only for the songs that actually get downloaded.
	entries := make([]nikoget.Entry, 0, len(album.songIDs))
	for i, songID := range album.songIDs {
		entries = append(entries, nikoget.ThinEntry(&thinAudio{
			resolver: r,
			info: nikoget.ThinInfo{
				ID:      songID,
				Title:   album.songNames[i],
				Artists: []string{album.artist},
				Album:   album.name,
			},
		}))
	}
	return entries, nil
}

func (r *Resolver) fetchAlbum(ctx context.Context, id string) (*albumInfo, error) {
	logger := nikoget.Logger(ctx).Sugar().Named("ncm")
	logger.Debugw("fetching album info", "id", id)

	var page albumPage
	if err := r.fetchPageData(ctx, "https://y.music.163.com/m/album?id="+url.QueryEscape(id), &page); err != nil {
		return nil, err
	}
	album := page.Album.Album
	if album.Name == "" {
		return nil, nikoget.NewResolveError("cannot obtain album data from the page")
	}

	artistNames := make([]string, 0, len(album.Artists))
	for _, ar := range album.Artists {
		artistNames = append(artistNames, ar.Name)
	}
	info := &albumInfo{
		name:        album.Name,
		artist:      strings.Join(artistNames, "/"),
		publishDate: time.UnixMilli(album.PublishTime).Format("2006/01/02"),
	}
	for _, song := range album.Songs {
		info.songIDs = append(info.songIDs, song.ID.String())
		info.songNames = append(info.songNames, song.SongName)
	}
	return info, nil
}

// fetchPageData GETs a share page and decodes the serialized store embedded in it.
func (r *Resolver) fetchPageData(ctx context.Context, pageURL string, v any) error {
	body, err := r.get(ctx, pageURL)
	if err != nil {
		return err
	}
	match := r.dataExtractor.FindSubmatch(body)
	if match == nil {
		return nikoget.NewResolveError("page has no embedded data store")
	}
	if err := json.Unmarshal(match[1], v); err != nil {
		return nikoget.NewResolveError("malformed page data: %v", err)
	}
	return nil
}

type lyricsResponse struct {
	PureMusic bool `json:"pureMusic"`
	Lrc       struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
	Tlyric struct {
		Lyric string `json:"lyric"`
	} `json:"tlyric"`
}

func (r *Resolver) fetchLyrics(ctx context.Context, id string) (string, error) {
	body, err := r.get(ctx, "https://music.163.com/api/song/lyric?id="+url.QueryEscape(id)+"&lv=1&kv=1&tv=-1")
	if err != nil {
		return "", err
	}
	var resp lyricsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", nikoget.NewResolveError("malformed lyrics response: %v", err)
	}
	if resp.PureMusic {
		return "[00:00.00] 纯音乐", nil
	}
	result := resp.Lrc.Lyric
	if resp.Tlyric.Lyric != "" {
		result += "\r\n" + resp.Tlyric.Lyric
	}
	return result, nil
}

func (r *Resolver) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s fetching %s", resp.Status, rawURL)
	}
	return io.ReadAll(resp.Body)
}

func (r *Resolver) requestHeader() http.Header {
	header := http.Header{}
	header.Set("User-Agent", userAgent)
	return header
}

type audio struct {
	resolver *Resolver
	id       string
	info     *nikoget.AudioInfo
	coverURL string
}

func (a *audio) Info() *nikoget.AudioInfo {
	return a.info
}

func (a *audio) Download(ctx context.Context, w io.Writer) *download.Task {
	streamURL := "https://music.163.com/song/media/outer/url?id=" + url.QueryEscape(a.id) + ".mp3"
	nikoget.Logger(ctx).Sugar().Named("ncm").Debugw("downloading audio", "url", streamURL)
	return download.NewTask(download.HTTPTransfer(ctx, a.resolver.client, streamURL, a.resolver.requestHeader()), w)
}

func (a *audio) Cover() generic.Option[nikoget.CoverProvider] {
	if a.coverURL == "" {
		return generic.None[nikoget.CoverProvider]()
	}
	return generic.Some[nikoget.CoverProvider](a)
}

func (a *audio) DownloadCover(ctx context.Context, w io.Writer) *download.Task {
	nikoget.Logger(ctx).Sugar().Named("ncm").Debugw("downloading cover", "url", a.coverURL)
	return download.NewTask(download.HTTPTransfer(ctx, a.resolver.client, a.coverURL, a.resolver.requestHeader()), w)
}

type thinAudio struct {
	resolver *Resolver
	info     nikoget.ThinInfo
}

func (t *thinAudio) ThinInfo() nikoget.ThinInfo {
	return t.info
}

func (t *thinAudio) ToFull(ctx context.Context) (nikoget.Audio, error) {
	return t.resolver.fetchSong(ctx, t.info.ID)
}
