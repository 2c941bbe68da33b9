package download

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xuanyeovo/nikoget/internal/syncutil"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// IsTerminal returns true for the two end states; a task never leaves them.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// A TransferFunc performs the actual network transfer for a Task. It must write the
// payload to w, call SetContentInfo and MarkHeadersReady once enough response metadata is
// known to classify the content, and report progress via AddBytes (or by writing to the
// task as an io.Writer). A nil return means the transfer finished; a non-nil return is
// captured as the task's terminal error.
type TransferFunc func(t *Task, w io.Writer) error

// Snapshot is a consistent view of a task's observable state, taken under the task lock.
type Snapshot struct {
	Status         Status
	Err            error
	MIME           string
	TotalSize      int64
	DownloadedSize int64
	HeadersReady   bool
}

// A Task runs one transfer on its own worker goroutine while exposing progress and
// terminal state safely to observers on other goroutines.
//
// All mutable state is guarded by a single task-owned mutex; readers never observe a
// torn combination (e.g. a failed status with no error). A task is started once, observed
// until terminal, then discarded; it is not reused.
//
// TotalSize stays 0 for the whole transfer when the size is unknown; observers must treat
// 0 as "unknown", not as zero bytes expected.
type Task struct {
	id       string
	transfer TransferFunc
	w        io.Writer
	logger   *zap.SugaredLogger

	mu             sync.Mutex
	status         Status
	err            error
	mime           string
	totalSize      int64
	downloadedSize int64
	headersReady   bool

	headersReadyEvent *syncutil.Event
	done              *syncutil.Event
}

// NewTask builds a pending task that will run transfer, streaming into w. The task never
// closes w; the caller opened the sink and the caller closes it.
func NewTask(transfer TransferFunc, w io.Writer) *Task {
	id := uuid.NewString()
	return &Task{
		id:       id,
		transfer: transfer,
		w:        w,
		logger:   zap.S().Named("download").With("task_id", id),

		status:            StatusPending,
		headersReadyEvent: syncutil.NewEvent(),
		done:              syncutil.NewEvent(),
	}
}

func (t *Task) ID() string {
	return t.id
}

// Start transitions the task from pending to running and begins the transfer on a new
// goroutine. Calling Start on a non-pending task does nothing.
func (t *Task) Start() {
	t.mu.Lock()
	if t.status != StatusPending {
		t.mu.Unlock()
		return
	}
	t.status = StatusRunning
	t.mu.Unlock()
	t.logger.Debugw("transfer started")
	go t.run()
}

func (t *Task) run() {
	err := t.runTransfer()

	// Force headers-ready before the terminal status becomes visible, so that
	// headers-ready never lags a terminal status and waiters cannot hang on it.
	t.MarkHeadersReady()

	t.mu.Lock()
	if err != nil {
		t.status = StatusFailed
		t.err = err
	} else {
		t.status = StatusFinished
	}
	t.mu.Unlock()
	t.done.Set()

	if err != nil {
		t.logger.Warnw("transfer failed", "error", err)
	} else {
		t.logger.Debugw("transfer finished")
	}
}

func (t *Task) runTransfer() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transfer panic: %v", r)
		}
	}()
	return t.transfer(t, t.w)
}

// SetContentInfo records the content's MIME type and total size in bytes (0 = unknown).
// Ignored once headers-ready has been signalled: MIME and total size are stable from that
// point on.
func (t *Task) SetContentInfo(mime string, totalSize int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.headersReady {
		return
	}
	t.mime = mime
	if totalSize > 0 {
		t.totalSize = totalSize
	}
}

// MarkHeadersReady signals that MIME type and total size (if knowable) are now fixed,
// before the body has finished streaming. Idempotent.
func (t *Task) MarkHeadersReady() {
	t.mu.Lock()
	t.headersReady = true
	t.mu.Unlock()
	t.headersReadyEvent.Set()
}

// AddBytes increases how many bytes have been successfully downloaded so far.
func (t *Task) AddBytes(n int) {
	t.mu.Lock()
	t.downloadedSize += int64(n)
	t.mu.Unlock()
}

// Write ignores the data but counts it via AddBytes, allowing progress tracking with
// io.MultiWriter. Make the task the last writer so failed writes are not counted.
func (t *Task) Write(p []byte) (n int, err error) {
	n = len(p)
	t.AddBytes(n)
	return n, nil
}

// Snapshot returns a consistent view of the task's observable state.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Status:         t.status,
		Err:            t.err,
		MIME:           t.mime,
		TotalSize:      t.totalSize,
		DownloadedSize: t.downloadedSize,
		HeadersReady:   t.headersReady,
	}
}

func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Err returns the captured terminal error, nil unless Status is StatusFailed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) MIME() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mime
}

// Progress returns the downloaded and total bytes of the transfer (total 0 = unknown).
func (t *Task) Progress() (downloaded int64, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.downloadedSize, t.totalSize
}

// HeadersReady returns a channel that closes once MIME type and size are fixed (which is
// no later than the task reaching a terminal status).
func (t *Task) HeadersReady() <-chan struct{} {
	return t.headersReadyEvent.Wait()
}

// Done returns a channel that closes once the task reaches a terminal status.
func (t *Task) Done() <-chan struct{} {
	return t.done.Wait()
}

// WaitHeaders blocks until headers-ready or ctx expiry.
func (t *Task) WaitHeaders(ctx context.Context) error {
	select {
	case <-t.HeadersReady():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the task is terminal, returning its terminal error (nil on success).
// There is no way to stop the underlying worker: a caller that gives up on a task via ctx
// abandons the transfer, it does not cancel it. Transfers built from HTTPTransfer stop on
// their own once their construction context expires.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.Done():
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
