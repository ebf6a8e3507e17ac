package tasks

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-photo-pipeline/internal/logging"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

// FilterTask applies a Filter to the downloaded image of one record
type FilterTask struct {
	row    int
	record *photo.Record
	filter Filter
	logger logging.Logger
	onDone DoneFunc
}

func NewFilterTask(row int, record *photo.Record, filter Filter, logger logging.Logger, onDone DoneFunc) *FilterTask {
	return &FilterTask{
		row:    row,
		record: record,
		filter: filter,
		logger: logger,
		onDone: onDone,
	}
}

// Run filters the record's image. Only downloaded records are filtered;
// any other state completes as skipped without touching the record.
func (t *FilterTask) Run(tok Token) {
	if tok.IsCancelled() {
		return
	}

	if state := t.record.State(); state != photo.StateDownloaded {
		t.logger.Debug("Filtration skipped", "row", t.row, "state", state.String())
		t.onDone.call(Result{Row: t.row, Outcome: OutcomeSkipped})
		return
	}

	input := imaging.Clone(t.record.Image())
	if tok.IsCancelled() {
		return
	}

	output, err := t.apply(tok, input)
	if err != nil {
		if tok.IsCancelled() {
			return
		}
		t.failFilter(tok, err)
		return
	}

	var markErr error
	if !tok.Commit(func() { markErr = t.record.MarkFiltered(output) }) {
		t.logger.Debug("Filtered image discarded after cancellation", "row", t.row)
		return
	}
	if markErr != nil {
		t.logger.Warn("Filter result not applied", "row", t.row, "error", markErr)
		t.onDone.call(Result{Row: t.row, Outcome: OutcomeSkipped, Err: markErr})
		return
	}

	t.logger.Debug("Photo filtered", "row", t.row)
	t.onDone.call(Result{Row: t.row, Outcome: OutcomeFiltered})
}

func (t *FilterTask) apply(tok Token, input image.Image) (image.Image, error) {
	output, err := t.filter.Apply(tok.Context(), input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFilter, err)
	}
	if output == nil {
		return nil, fmt.Errorf("%w: %w", ErrFilter, errors.New("filter produced no image"))
	}
	return output, nil
}

func (t *FilterTask) failFilter(tok Token, cause error) {
	var markErr error
	if !tok.Commit(func() { markErr = t.record.MarkFilterFailed() }) {
		return
	}
	if markErr != nil {
		t.logger.Warn("Filter failure not applied", "row", t.row, "error", markErr)
		t.onDone.call(Result{Row: t.row, Outcome: OutcomeSkipped, Err: markErr})
		return
	}

	t.logger.Warn("Photo filter failed", "row", t.row, "name", t.record.Name(), "error", cause)
	t.onDone.call(Result{Row: t.row, Outcome: OutcomeFilterFailed, Err: cause})
}
