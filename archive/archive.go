// Package archive drives the full pipeline for a batch of URLs: match a resolver,
// resolve entries, download audio and cover, embed tags, and record the result.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	nikoget "github.com/xuanyeovo/nikoget"
	"github.com/xuanyeovo/nikoget/async"
	"github.com/xuanyeovo/nikoget/download"
	"github.com/xuanyeovo/nikoget/generic"
	"github.com/xuanyeovo/nikoget/internal/history"
	"github.com/xuanyeovo/nikoget/tag"
	"github.com/xuanyeovo/nikoget/util"
)

// SelectItem is one candidate in a disambiguation list.
type SelectItem struct {
	ID    string
	Label string
}

// A Selector chooses one entry when a URL resolves to several. Returning ok == false
// aborts processing of that URL without error.
type Selector interface {
	SelectOne(items []SelectItem) (id string, ok bool)
}

// ProgressFunc receives periodic transfer progress. total is 0 while the size is unknown.
type ProgressFunc func(label string, downloaded int64, total int64)

type Config struct {
	// OutputDir is where finished files land. Must exist.
	OutputDir string
	// DownloadAll skips disambiguation and downloads every resolved entry.
	DownloadAll bool
	// Force re-downloads URLs already present in the history.
	Force bool
}

type Archiver struct {
	registry *nikoget.Registry
	embedder *tag.Embedder
	selector Selector
	history  *history.DB
	progress ProgressFunc
	logger   *zap.SugaredLogger
	config   Config
}

type Option func(*Archiver)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Archiver) {
		a.logger = logger.Sugar().Named("archive")
	}
}

func WithEmbedder(embedder *tag.Embedder) Option {
	return func(a *Archiver) {
		a.embedder = embedder
	}
}

// WithSelector sets the disambiguation strategy for multi-entry URLs. Without one,
// every entry is downloaded, as if Config.DownloadAll were set.
func WithSelector(selector Selector) Option {
	return func(a *Archiver) {
		a.selector = selector
	}
}

// WithHistory enables skip-once-downloaded bookkeeping.
func WithHistory(db *history.DB) Option {
	return func(a *Archiver) {
		a.history = db
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(a *Archiver) {
		a.progress = fn
	}
}

func New(registry *nikoget.Registry, config Config, opts ...Option) *Archiver {
	a := &Archiver{
		registry: registry,
		logger:   zap.S().Named("archive"),
		config:   config,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.embedder == nil {
		a.embedder = tag.NewEmbedder()
	}
	return a
}

// ProcessAll runs every URL through the pipeline. A failing URL does not stop the
// others; failures are collected and returned together.
func (a *Archiver) ProcessAll(ctx context.Context, urls []string) error {
	var result error
	for _, url := range urls {
		if err := a.Process(ctx, url); err != nil {
			a.logger.Errorw("processing failed", "url", url, "error", err)
			result = multierror.Append(result, multierror.Prefix(err, url+":"))
		}
		if ctx.Err() != nil {
			return multierror.Append(result, ctx.Err()).ErrorOrNil()
		}
	}
	return result
}

// Process runs one URL through the pipeline.
func (a *Archiver) Process(ctx context.Context, url string) error {
	if a.history != nil && !a.config.Force {
		record, err := a.history.Get(url)
		if err != nil {
			return fmt.Errorf("history lookup: %w", err)
		}
		if record != nil {
			a.logger.Infow("already downloaded, skipping", "url", url, "path", record.Path)
			return nil
		}
	}

	resolver, err := a.registry.Match(url)
	if err != nil {
		return err
	}
	a.logger.Debugw("matched resolver", "url", url, "resolver", resolver.ID())

	entries, err := resolver.Resolve(ctx, url)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nikoget.NewResolveError("resolved to no entries")
	}

	chosen, err := a.choose(entries)
	if err != nil {
		return err
	}

	var result error
	for _, entry := range chosen {
		if err := a.processEntry(ctx, resolver, url, entry); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// choose narrows a multi-entry resolution down to the entries to download. Items are
// keyed by position, so entries with identical labels stay distinguishable.
func (a *Archiver) choose(entries []nikoget.Entry) ([]nikoget.Entry, error) {
	if len(entries) == 1 || a.config.DownloadAll || a.selector == nil {
		return entries, nil
	}
	items := make([]SelectItem, len(entries))
	for i, entry := range entries {
		items[i] = SelectItem{ID: strconv.Itoa(i), Label: entry.Label()}
	}
	id, ok := a.selector.SelectOne(items)
	if !ok {
		return nil, nil
	}
	index, err := strconv.Atoi(id)
	if err != nil || index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("selector returned unknown entry %q", id)
	}
	return []nikoget.Entry{entries[index]}, nil
}

func (a *Archiver) processEntry(ctx context.Context, resolver nikoget.Resolver, url string, entry nikoget.Entry) error {
	audio, err := entry.Upgrade(ctx)
	if err != nil {
		return fmt.Errorf("cannot fetch full metadata: %w", err)
	}
	info := audio.Info()
	base := util.SanitizeFilename(info.DisplayName())

	// Download into a prefixed temp name first; the finished, tagged file is then
	// renamed into place so an interrupted run never leaves a plausible-looking
	// half-file under the final name.
	tmpPath := filepath.Join(a.config.OutputDir, "tmp_"+base)
	sink, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("cannot create output file: %w", err)
	}

	a.logger.Infow("downloading", "title", info.ShortName(), "file", tmpPath)
	task := audio.Download(ctx, sink)
	task.Start()

	// Cover art transfers concurrently with the audio; its result is collected only
	// once the audio is safely on disk.
	var coverResult <-chan generic.Result[*tag.Cover]
	if c := audio.Cover(); c.IsSome() {
		provider := c.Unwrap()
		coverResult = async.RunResult(func() (*tag.Cover, error) {
			return a.fetchCover(ctx, provider)
		})
	}

	if err := task.WaitHeaders(ctx); err != nil {
		sink.Close()
		os.Remove(tmpPath)
		return err
	}
	mime := task.MIME()

	a.observe(ctx, task, info.ShortName())

	waitErr := task.Wait(ctx)
	closeErr := sink.Close()
	switch {
	case waitErr != nil:
		os.Remove(tmpPath)
		if errors.Is(waitErr, ctx.Err()) {
			return waitErr
		}
		return fmt.Errorf("download failed: %w", waitErr)
	case closeErr != nil:
		os.Remove(tmpPath)
		return fmt.Errorf("cannot finish output file: %w", closeErr)
	}

	var cover *tag.Cover
	if coverResult != nil {
		if c, err := (<-coverResult).Parts(); err != nil {
			a.logger.Warnw("cover download failed", "error", err)
		} else {
			cover = c
		}
	}

	if info.Lyrics != "" {
		lrcPath := filepath.Join(a.config.OutputDir, base+".lrc")
		if err := os.WriteFile(lrcPath, []byte(info.Lyrics), 0644); err != nil {
			a.logger.Warnw("cannot write lyrics sidecar", "path", lrcPath, "error", err)
		}
	}

	if err := a.embedder.Patch(tmpPath, mime, info, cover); err != nil {
		if !errors.Is(err, tag.ErrUnsupportedFormat) {
			// Keep the raw payload around for manual recovery.
			a.logger.Errorw("tag embedding failed, raw download kept", "path", tmpPath, "error", err)
			return fmt.Errorf("tag embedding: %w", err)
		}
		a.logger.Warnw("no tag support for this format, saving as-is", "mime", mime)
	}

	finalPath := filepath.Join(a.config.OutputDir, base+nikoget.ExtensionForMIME(mime))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("cannot move finished file: %w", err)
	}
	a.logger.Infow("saved", "file", finalPath)

	if a.history != nil {
		record := history.Record{
			URL:          url,
			Resolver:     resolver.ID(),
			Title:        info.Title,
			Path:         finalPath,
			DownloadedAt: time.Now(),
		}
		if err := a.history.Put(record); err != nil {
			a.logger.Warnw("cannot record download", "url", url, "error", err)
		}
	}
	return nil
}

// observe polls the running task and feeds the progress callback until the task is done.
func (a *Archiver) observe(ctx context.Context, task *download.Task, label string) {
	if a.progress == nil {
		select {
		case <-task.Done():
		case <-ctx.Done():
		}
		return
	}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-task.Done():
			downloaded, total := task.Progress()
			a.progress(label, downloaded, total)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			downloaded, total := task.Progress()
			a.progress(label, downloaded, total)
		}
	}
}

// fetchCover grabs cover art into memory. Cover failures never fail the download; the
// caller logs the error and the audio goes out without embedded art.
func (a *Archiver) fetchCover(ctx context.Context, provider nikoget.CoverProvider) (*tag.Cover, error) {
	var buf bytes.Buffer
	task := provider.DownloadCover(ctx, &buf)
	task.Start()
	if err := task.Wait(ctx); err != nil {
		return nil, err
	}
	return &tag.Cover{Data: buf.Bytes(), MIME: task.MIME()}, nil
}
