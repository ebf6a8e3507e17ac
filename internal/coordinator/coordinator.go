// Package coordinator schedules photo downloads and filtrations for the rows
// of a list according to which rows are visible. All scheduling state lives
// on the main loop; public methods hop onto it.
package coordinator

import (
	"context"
	"slices"
	"time"

	"github.com/tendant/simple-photo-pipeline/internal/logging"
	"github.com/tendant/simple-photo-pipeline/internal/mainloop"
	"github.com/tendant/simple-photo-pipeline/internal/operations"
	"github.com/tendant/simple-photo-pipeline/internal/storage"
	"github.com/tendant/simple-photo-pipeline/internal/tasks"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

// Options configures a Coordinator
type Options struct {
	Fetcher      storage.Fetcher
	Filter       tasks.Filter
	FetchTimeout time.Duration
	Logger       logging.Logger
	Metrics      *operations.Metrics
}

// Coordinator ties visible rows to background work
type Coordinator struct {
	loop      *mainloop.Loop
	records   []*photo.Record
	viewport  Viewport
	presenter Presenter
	pending   *operations.PendingOperations

	fetcher      storage.Fetcher
	filter       tasks.Filter
	fetchTimeout time.Duration
	logger       logging.Logger

	// loop-confined
	ctx       context.Context
	scrolling bool
}

// New creates a Coordinator for records. The caller runs loop; Start must be
// called before any scheduling method.
func New(loop *mainloop.Loop, records []*photo.Record, viewport Viewport, presenter Presenter, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	filter := opts.Filter
	if filter == nil {
		filter = tasks.NewSepia(tasks.DefaultSepiaIntensity)
	}
	if presenter == nil {
		presenter = PresenterFunc(func(int, photo.Render) {})
	}

	return &Coordinator{
		loop:         loop,
		records:      records,
		viewport:     viewport,
		presenter:    presenter,
		pending:      operations.NewPendingOperations(logger, opts.Metrics),
		fetcher:      opts.Fetcher,
		filter:       filter,
		fetchTimeout: opts.FetchTimeout,
		logger:       logger,
		ctx:          context.Background(),
	}
}

// Start launches the queue workers. Operations derive their context from
// ctx, so cancelling it aborts all outstanding work.
func (c *Coordinator) Start(ctx context.Context) error {
	c.pending.Start()
	return c.loop.Do(func() {
		c.ctx = ctx
	})
}

// Close cancels queued work and waits for running tasks to return. It must
// not be called from the main loop.
func (c *Coordinator) Close() {
	c.pending.Close()
}

// BeginDrag suspends both queues while the user scrolls
func (c *Coordinator) BeginDrag() error {
	return c.loop.Do(func() {
		c.scrolling = true
		c.pending.Suspend()
	})
}

// EndDrag settles the list unless it keeps moving with momentum
func (c *Coordinator) EndDrag(decelerate bool) error {
	if decelerate {
		return nil
	}
	return c.Settle()
}

// EndDecelerating settles the list once momentum scrolling stops
func (c *Coordinator) EndDecelerating() error {
	return c.Settle()
}

// Settle resumes the queues, reconciles in-flight work with the visible rows
// and starts work for any visible row still idle.
func (c *Coordinator) Settle() error {
	return c.loop.Do(c.settle)
}

// Reconcile cancels work for rows that left the screen and starts work for
// visible rows that have none. It does not change suspension.
func (c *Coordinator) Reconcile() error {
	return c.loop.Do(c.reconcile)
}

// InFlight returns the rows with a download or filtration in flight, sorted
func (c *Coordinator) InFlight() ([]int, error) {
	var rows []int
	err := c.loop.Do(func() {
		for row := range c.pending.InFlightRows() {
			rows = append(rows, row)
		}
	})
	slices.Sort(rows)
	return rows, err
}

// Render returns the cell tuple for row
func (c *Coordinator) Render(row int) (photo.Render, error) {
	if row < 0 || row >= len(c.records) {
		return photo.Render{}, ErrRowOutOfRange
	}
	return c.records[row].Snapshot().Render(), nil
}

// Snapshot returns a copy of the record at row
func (c *Coordinator) Snapshot(row int) (photo.Snapshot, error) {
	if row < 0 || row >= len(c.records) {
		return photo.Snapshot{}, ErrRowOutOfRange
	}
	return c.records[row].Snapshot(), nil
}

// Renders returns the cell tuples for every row
func (c *Coordinator) Renders() []photo.Render {
	renders := make([]photo.Render, len(c.records))
	for i, rec := range c.records {
		renders[i] = rec.Snapshot().Render()
	}
	return renders
}

// Len returns the number of rows
func (c *Coordinator) Len() int {
	return len(c.records)
}

// Settled reports whether every row has reached a state that needs no more work
func (c *Coordinator) Settled() bool {
	for _, rec := range c.records {
		if !rec.Snapshot().Settled() {
			return false
		}
	}
	return true
}

func (c *Coordinator) settle() {
	c.scrolling = false
	c.pending.Resume()
	c.reconcile()
	c.startVisibleIdle()
}

func (c *Coordinator) reconcile() {
	visible := make(map[int]struct{})
	for _, row := range c.viewport.VisibleRows() {
		if row >= 0 && row < len(c.records) {
			visible[row] = struct{}{}
		}
	}
	inFlight := c.pending.InFlightRows()

	cancelled := 0
	for row := range inFlight {
		if _, ok := visible[row]; !ok {
			c.pending.CancelAndRemove(row)
			cancelled++
		}
	}

	started := 0
	for _, row := range sortedRows(visible) {
		if _, busy := inFlight[row]; busy {
			continue
		}
		if c.startIfIdle(row) {
			started++
		}
	}

	c.logger.Debug("Reconciled visible rows",
		"visible", len(visible),
		"cancelled", cancelled,
		"started", started,
	)
}

// startVisibleIdle covers rows that are on screen without any scroll having
// happened, e.g. at first load.
func (c *Coordinator) startVisibleIdle() {
	for _, row := range c.viewport.VisibleRows() {
		if row >= 0 && row < len(c.records) {
			c.startIfIdle(row)
		}
	}
}

// startIfIdle submits the next phase for row if it needs one and nothing is
// already in flight for that phase.
func (c *Coordinator) startIfIdle(row int) bool {
	rec := c.records[row]
	snap := rec.Snapshot()

	switch {
	case snap.State == photo.StateNew:
		if c.pending.DownloadInFlight(row) {
			return false
		}
		return c.startDownload(row, rec)
	case snap.State == photo.StateDownloaded && !snap.FilterFailed:
		if c.pending.FiltrationInFlight(row) {
			return false
		}
		return c.startFiltration(row, rec)
	}
	return false
}

func (c *Coordinator) startDownload(row int, rec *photo.Record) bool {
	var op *operations.Operation
	task := tasks.NewDownloadTask(row, rec, c.fetcher, c.fetchTimeout, c.logger, func(res tasks.Result) {
		c.complete(op, res)
	})
	op = operations.NewOperation(c.ctx, row, operations.PhaseDownload, func(o *operations.Operation) {
		task.Run(o)
	})
	return c.pending.SubmitDownload(row, op)
}

func (c *Coordinator) startFiltration(row int, rec *photo.Record) bool {
	var op *operations.Operation
	task := tasks.NewFilterTask(row, rec, c.filter, c.logger, func(res tasks.Result) {
		c.complete(op, res)
	})
	op = operations.NewOperation(c.ctx, row, operations.PhaseFiltration, func(o *operations.Operation) {
		task.Run(o)
	})
	return c.pending.SubmitFiltration(row, op)
}

// complete runs on a queue worker and hands the result to the main loop
func (c *Coordinator) complete(op *operations.Operation, res tasks.Result) {
	if !c.loop.Post(func() { c.handleCompletion(op, res) }) {
		c.logger.Debug("Completion dropped, main loop stopped", "row", res.Row, "phase", string(op.Phase))
	}
}

func (c *Coordinator) handleCompletion(op *operations.Operation, res tasks.Result) {
	if !c.pending.Finish(op) {
		c.logger.Debug("Stale completion", "operation_id", op.ID.String(), "row", res.Row)
	}

	row := res.Row
	c.presenter.RowChanged(row, c.records[row].Snapshot().Render())

	if c.scrolling || !c.isVisible(row) {
		return
	}
	c.startIfIdle(row)
}

func (c *Coordinator) isVisible(row int) bool {
	return slices.Contains(c.viewport.VisibleRows(), row)
}

func sortedRows(set map[int]struct{}) []int {
	rows := make([]int, 0, len(set))
	for row := range set {
		rows = append(rows, row)
	}
	slices.Sort(rows)
	return rows
}

// WaitSettled polls until every row in rows is settled or ctx is done
func (c *Coordinator) WaitSettled(ctx context.Context, rows []int, interval time.Duration) error {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		settled := true
		for _, row := range rows {
			snap, err := c.Snapshot(row)
			if err != nil {
				return err
			}
			if !snap.Settled() {
				settled = false
				break
			}
		}
		if settled {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ScrollThrough pages view across the whole list, settling at each page and
// waiting for its rows to finish before calling visit with them.
func (c *Coordinator) ScrollThrough(ctx context.Context, view *ListView, interval time.Duration, visit func(rows []int) error) error {
	_, pageSize := view.Window()
	if pageSize < 1 {
		pageSize = 1
	}

	for first := 0; first < view.Rows(); first += pageSize {
		if err := c.BeginDrag(); err != nil {
			return err
		}
		view.SetWindow(first, pageSize)
		if err := c.EndDrag(false); err != nil {
			return err
		}

		rows := view.VisibleRows()
		if err := c.WaitSettled(ctx, rows, interval); err != nil {
			return err
		}
		if visit != nil {
			if err := visit(rows); err != nil {
				return err
			}
		}
	}
	return nil
}
