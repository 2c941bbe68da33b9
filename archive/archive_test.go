package archive

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	nikoget "github.com/xuanyeovo/nikoget"
	"github.com/xuanyeovo/nikoget/download"
	"github.com/xuanyeovo/nikoget/generic"
	"github.com/xuanyeovo/nikoget/internal/history"
)

type fakeAudio struct {
	info *nikoget.AudioInfo
	url  string
}

func (f *fakeAudio) Info() *nikoget.AudioInfo {
	return f.info
}

func (f *fakeAudio) Download(ctx context.Context, w io.Writer) *download.Task {
	return download.NewTask(download.HTTPTransfer(ctx, nil, f.url, nil), w)
}

func (f *fakeAudio) Cover() generic.Option[nikoget.CoverProvider] {
	return generic.None[nikoget.CoverProvider]()
}

type coverAudio struct {
	fakeAudio
	coverURL string
}

func (f *coverAudio) Cover() generic.Option[nikoget.CoverProvider] {
	return generic.Some[nikoget.CoverProvider](f)
}

func (f *coverAudio) DownloadCover(ctx context.Context, w io.Writer) *download.Task {
	return download.NewTask(download.HTTPTransfer(ctx, nil, f.coverURL, nil), w)
}

type fakeResolver struct {
	entries []nikoget.Entry
}

func (r *fakeResolver) ID() string           { return "test.fake" }
func (r *fakeResolver) Version() string      { return "0.0.0" }
func (r *fakeResolver) MatchURL(string) bool { return true }
func (r *fakeResolver) Resolve(ctx context.Context, url string) ([]nikoget.Entry, error) {
	return r.entries, nil
}

func newRegistry(t *testing.T, entries ...nikoget.Entry) *nikoget.Registry {
	t.Helper()
	registry := nikoget.NewRegistry()
	require.NoError(t, registry.Register(&fakeResolver{entries: entries}))
	return registry
}

func fullEntry(title, artist, lyrics, url string) nikoget.Entry {
	return nikoget.FullEntry(&fakeAudio{
		info: &nikoget.AudioInfo{Title: title, Artists: []string{artist}, Lyrics: lyrics},
		url:  url,
	})
}

func TestProcessDownloadsAndRecords(t *testing.T) {
	payload := []byte("not really mpeg audio, but enough to tag")
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(payload)
	}))
	defer server.Close()

	outputDir := t.TempDir()
	db, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer db.Close()

	var progressCalls int32
	archiver := New(
		newRegistry(t, fullEntry("Track", "Artist", "[00:01.00] la la la", server.URL+"/track")),
		Config{OutputDir: outputDir},
		WithLogger(zap.NewNop()),
		WithHistory(db),
		WithProgress(func(label string, downloaded, total int64) {
			atomic.AddInt32(&progressCalls, 1)
		}),
	)

	sourceURL := "https://example.com/whatever"
	require.NoError(t, archiver.Process(context.Background(), sourceURL))

	finalPath := filepath.Join(outputDir, "Artist - Track.mp3")
	data, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	// Tagging prepends a header; the payload itself must survive at the end.
	assert.True(t, len(data) >= len(payload))
	assert.Equal(t, payload, data[len(data)-len(payload):])

	lyrics, err := os.ReadFile(filepath.Join(outputDir, "Artist - Track.lrc"))
	require.NoError(t, err)
	assert.Equal(t, "[00:01.00] la la la", string(lyrics))

	assert.GreaterOrEqual(t, atomic.LoadInt32(&progressCalls), int32(1))

	record, err := db.Get(sourceURL)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "Track", record.Title)
	assert.Equal(t, "test.fake", record.Resolver)
	assert.Equal(t, finalPath, record.Path)

	// Same URL again: the history makes it a no-op.
	require.NoError(t, archiver.Process(context.Background(), sourceURL))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestProcessUnsupportedFormatKeepsFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("opaque bytes"))
	}))
	defer server.Close()

	outputDir := t.TempDir()
	archiver := New(
		newRegistry(t, fullEntry("Blob", "Nobody", "", server.URL+"/blob")),
		Config{OutputDir: outputDir},
		WithLogger(zap.NewNop()),
	)

	require.NoError(t, archiver.Process(context.Background(), "https://example.com/blob"))

	// Unknown MIME: no extension, no tags, content untouched.
	data, err := os.ReadFile(filepath.Join(outputDir, "Nobody - Blob"))
	require.NoError(t, err)
	assert.Equal(t, "opaque bytes", string(data))
}

type pickLast struct{}

func (pickLast) SelectOne(items []SelectItem) (string, bool) {
	return items[len(items)-1].ID, true
}

func TestProcessSelectorNarrowsEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	outputDir := t.TempDir()
	archiver := New(
		newRegistry(t,
			fullEntry("First", "A", "", server.URL+"/first"),
			fullEntry("Second", "A", "", server.URL+"/second"),
		),
		Config{OutputDir: outputDir},
		WithLogger(zap.NewNop()),
		WithSelector(pickLast{}),
	)

	require.NoError(t, archiver.Process(context.Background(), "https://example.com/list"))

	_, err := os.Stat(filepath.Join(outputDir, "A - Second"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outputDir, "A - First"))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessSelectorDistinguishesIdenticalLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	// Two entries with the same artist and title; only position tells them apart.
	outputDir := t.TempDir()
	archiver := New(
		newRegistry(t,
			fullEntry("Same", "A", "", server.URL+"/first"),
			fullEntry("Same", "A", "", server.URL+"/second"),
		),
		Config{OutputDir: outputDir},
		WithLogger(zap.NewNop()),
		WithSelector(pickLast{}),
	)

	require.NoError(t, archiver.Process(context.Background(), "https://example.com/dup"))

	data, err := os.ReadFile(filepath.Join(outputDir, "A - Same"))
	require.NoError(t, err)
	assert.Equal(t, "/second", string(data))
}

func TestProcessEmbedsCover(t *testing.T) {
	payload := []byte("mpeg-ish payload")
	coverPayload := []byte("\x89PNG fake image bytes for the front cover")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(coverPayload)
		default:
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write(payload)
		}
	}))
	defer server.Close()

	outputDir := t.TempDir()
	entry := nikoget.FullEntry(&coverAudio{
		fakeAudio: fakeAudio{
			info: &nikoget.AudioInfo{Title: "Covered", Artists: []string{"B"}},
			url:  server.URL + "/track",
		},
		coverURL: server.URL + "/cover.png",
	})
	archiver := New(
		newRegistry(t, entry),
		Config{OutputDir: outputDir},
		WithLogger(zap.NewNop()),
	)

	require.NoError(t, archiver.Process(context.Background(), "https://example.com/covered"))

	data, err := os.ReadFile(filepath.Join(outputDir, "B - Covered.mp3"))
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, coverPayload), "cover bytes embedded in the tagged file")
	assert.Equal(t, payload, data[len(data)-len(payload):])
}

func TestProcessAllDownloadsEverything(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	outputDir := t.TempDir()
	archiver := New(
		newRegistry(t,
			fullEntry("First", "A", "", server.URL+"/first"),
			fullEntry("Second", "A", "", server.URL+"/second"),
		),
		Config{OutputDir: outputDir, DownloadAll: true},
		WithLogger(zap.NewNop()),
		WithSelector(pickLast{}),
	)

	require.NoError(t, archiver.Process(context.Background(), "https://example.com/list"))

	for _, name := range []string{"A - First", "A - Second"} {
		_, err := os.Stat(filepath.Join(outputDir, name))
		assert.NoError(t, err, name)
	}
}

func TestProcessDownloadFailureLeavesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	outputDir := t.TempDir()
	archiver := New(
		newRegistry(t, fullEntry("Gone", "X", "", server.URL+"/gone")),
		Config{OutputDir: outputDir},
		WithLogger(zap.NewNop()),
	)

	err := archiver.Process(context.Background(), "https://example.com/gone")
	require.Error(t, err)

	files, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestProcessAllCollectsFailures(t *testing.T) {
	registry := nikoget.NewRegistry() // empty: nothing matches
	archiver := New(registry, Config{OutputDir: t.TempDir()}, WithLogger(zap.NewNop()))

	err := archiver.ProcessAll(context.Background(), []string{"https://a.example/x", "https://b.example/y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://a.example/x")
	assert.Contains(t, err.Error(), "https://b.example/y")
}
