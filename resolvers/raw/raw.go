// Package raw resolves direct URLs to audio files on any HTTP server.
package raw

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	nikoget "github.com/xuanyeovo/nikoget"
	"github.com/xuanyeovo/nikoget/download"
	"github.com/xuanyeovo/nikoget/generic"
	"github.com/xuanyeovo/nikoget/util"
)

const (
	resolverID      = "org.xuanyeovo.raw"
	resolverVersion = "0.1.0"
)

type Config struct {
	Protocols  generic.Set[string]
	Extensions generic.Set[string]
}

func NewConfig() Config {
	return Config{
		Protocols: generic.NewSet(
			"http",
			"https",
		),
		Extensions: generic.NewSet(
			".flac",
			".m4a",
			".mp3",
			".ogg",
			".wav",
		),
	}
}

type Resolver struct {
	config Config
	client *http.Client
}

func New() (*Resolver, error) {
	return NewWithConfig(NewConfig())
}

func NewWithConfig(config Config) (*Resolver, error) {
	if config.Protocols.Count() == 0 || config.Extensions.Count() == 0 {
		return nil, nikoget.ErrInvalidResolver
	}
	return &Resolver{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (r *Resolver) ID() string {
	return resolverID
}

func (r *Resolver) Version() string {
	return resolverVersion
}

func (r *Resolver) MatchURL(rawURL string) bool {
	_, err := r.match(rawURL)
	return err == nil
}

func (r *Resolver) match(rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", nikoget.NewResolveError("malformed URL: %v", err)
	}
	if !r.config.Protocols.Contains(parsedURL.Scheme) {
		return "", nikoget.NewResolveError("unknown URL scheme %v", parsedURL.Scheme)
	}
	filename, err := util.FilenameFromURL(parsedURL)
	if err != nil {
		return "", nikoget.NewResolveError("no filename in URL: %v", err)
	}
	extension := strings.ToLower(path.Ext(filename))
	if extension == "" {
		return "", nikoget.NewResolveError("no file extension found")
	}
	if !r.config.Extensions.Contains(extension) {
		return "", nikoget.NewResolveError("unknown file extension %v", extension)
	}
	return filename, nil
}

func (r *Resolver) Resolve(ctx context.Context, rawURL string) ([]nikoget.Entry, error) {
	filename, err := r.match(rawURL)
	if err != nil {
		return nil, err
	}
	info := &nikoget.AudioInfo{
		Title:   strings.TrimSuffix(filename, path.Ext(filename)),
		Artists: []string{},
	}
	return []nikoget.Entry{nikoget.FullEntry(&audio{resolver: r, url: rawURL, info: info})}, nil
}

type audio struct {
	resolver *Resolver
	url      string
	info     *nikoget.AudioInfo
}

func (a *audio) Info() *nikoget.AudioInfo {
	return a.info
}

func (a *audio) Download(ctx context.Context, w io.Writer) *download.Task {
	return download.NewTask(download.HTTPTransfer(ctx, a.resolver.client, a.url, nil), w)
}

func (a *audio) Cover() generic.Option[nikoget.CoverProvider] {
	return generic.None[nikoget.CoverProvider]()
}
