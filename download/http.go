package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// NetworkError is a transfer failure talking to a remote endpoint, captured as the
// terminal error of the task running the transfer.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// A context-aware io.Reader wrapper.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// HTTPTransfer returns a TransferFunc that GETs url and streams the response body into
// the sink. Headers-ready is signalled as soon as the response headers arrive, with the
// MIME type taken from Content-Type and the total size from Content-Length when known.
func HTTPTransfer(ctx context.Context, client *http.Client, url string, header http.Header) TransferFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(t *Task, w io.Writer) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return &NetworkError{URL: url, Err: err}
		}
		for k, vs := range header {
			req.Header[k] = vs
		}
		resp, err := client.Do(req)
		if err != nil {
			return &NetworkError{URL: url, Err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &NetworkError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
		}

		mime := strings.TrimSpace(strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0])
		total := resp.ContentLength
		if total < 0 {
			total = 0
		}
		t.SetContentInfo(mime, total)
		t.MarkHeadersReady()

		if _, err := io.Copy(io.MultiWriter(w, t), &readerContext{ctx: ctx, r: resp.Body}); err != nil {
			return &NetworkError{URL: url, Err: err}
		}
		return nil
	}
}

// StreamTransfer adapts an already-classified byte stream into a TransferFunc, for
// sources where a site SDK hands out the stream directly instead of a plain URL.
func StreamTransfer(ctx context.Context, mime string, size int64, open func(context.Context) (io.ReadCloser, error)) TransferFunc {
	return func(t *Task, w io.Writer) error {
		stream, err := open(ctx)
		if err != nil {
			return err
		}
		defer stream.Close()
		t.SetContentInfo(mime, size)
		t.MarkHeadersReady()
		_, err = io.Copy(io.MultiWriter(w, t), &readerContext{ctx: ctx, r: stream})
		return err
	}
}
