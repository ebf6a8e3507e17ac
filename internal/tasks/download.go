package tasks

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-photo-pipeline/internal/logging"
	"github.com/tendant/simple-photo-pipeline/internal/storage"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

// DefaultFetchTimeout bounds a single download
const DefaultFetchTimeout = 30 * time.Second

// DownloadTask fetches the source image of one record and decodes it
type DownloadTask struct {
	row     int
	record  *photo.Record
	fetcher storage.Fetcher
	timeout time.Duration
	logger  logging.Logger
	onDone  DoneFunc
}

// NewDownloadTask creates a download for record at row. A non-positive
// timeout uses DefaultFetchTimeout.
func NewDownloadTask(row int, record *photo.Record, fetcher storage.Fetcher, timeout time.Duration, logger logging.Logger, onDone DoneFunc) *DownloadTask {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &DownloadTask{
		row:     row,
		record:  record,
		fetcher: fetcher,
		timeout: timeout,
		logger:  logger,
		onDone:  onDone,
	}
}

// Run executes the download. A cancelled token aborts silently: the record
// is left untouched and the callback does not fire.
func (t *DownloadTask) Run(tok Token) {
	if tok.IsCancelled() {
		return
	}

	src := t.record.SourceURL()
	if src == nil {
		t.fail(tok, fmt.Errorf("%w: record has no source URL", ErrFetch))
		return
	}

	ctx, cancel := context.WithTimeout(tok.Context(), t.timeout)
	data, err := t.fetcher.Fetch(ctx, src)
	cancel()

	if tok.IsCancelled() {
		t.logger.Debug("Download discarded after cancellation", "row", t.row, "url", src.Redacted())
		return
	}
	if err != nil {
		t.fail(tok, fmt.Errorf("%w: %w", ErrFetch, err))
		return
	}
	if len(data) == 0 {
		t.fail(tok, ErrEmptyPayload)
		return
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		t.fail(tok, fmt.Errorf("%w: %w", ErrDecode, err))
		return
	}

	var markErr error
	if !tok.Commit(func() { markErr = t.record.MarkDownloaded(img) }) {
		return
	}
	if markErr != nil {
		t.logger.Warn("Download result not applied", "row", t.row, "error", markErr)
		t.onDone.call(Result{Row: t.row, Outcome: OutcomeSkipped, Err: markErr})
		return
	}

	b := img.Bounds()
	t.logger.Debug("Photo downloaded", "row", t.row, "url", src.Redacted(), "bytes", len(data), "width", b.Dx(), "height", b.Dy())
	t.onDone.call(Result{Row: t.row, Outcome: OutcomeDownloaded})
}

func (t *DownloadTask) fail(tok Token, cause error) {
	var markErr error
	if !tok.Commit(func() { markErr = t.record.MarkFailed(photo.FailedPlaceholder()) }) {
		return
	}
	if markErr != nil {
		t.logger.Warn("Download failure not applied", "row", t.row, "error", markErr)
		t.onDone.call(Result{Row: t.row, Outcome: OutcomeSkipped, Err: markErr})
		return
	}

	t.logger.Warn("Photo download failed", "row", t.row, "name", t.record.Name(), "error", cause)
	t.onDone.call(Result{Row: t.row, Outcome: OutcomeFailed, Err: cause})
}
