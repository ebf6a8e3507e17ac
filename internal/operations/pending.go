package operations

import (
	"github.com/tendant/simple-photo-pipeline/internal/logging"
)

// PendingOperations owns the download and filtration queues and tracks the
// operation in flight for each row in each phase.
//
// The bookkeeping maps are not locked: every method except the queue
// lifecycle (Start, Close) must be called from the same goroutine, normally
// the coordinator's main loop. Queue workers never touch the maps.
type PendingOperations struct {
	downloads   *Queue
	filtrations *Queue

	downloadsInFlight   map[int]*Operation
	filtrationsInFlight map[int]*Operation

	suspended bool
	logger    logging.Logger
	metrics   *Metrics
}

// NewPendingOperations creates the two serial phase queues
func NewPendingOperations(logger logging.Logger, metrics *Metrics) *PendingOperations {
	return &PendingOperations{
		downloads:           NewQueue(PhaseDownload, 1, logger, metrics),
		filtrations:         NewQueue(PhaseFiltration, 1, logger, metrics),
		downloadsInFlight:   make(map[int]*Operation),
		filtrationsInFlight: make(map[int]*Operation),
		logger:              logger,
		metrics:             metrics,
	}
}

// Start launches the queue workers
func (p *PendingOperations) Start() {
	p.downloads.Start()
	p.filtrations.Start()
}

// Close cancels queued work on both queues and waits for running work to return
func (p *PendingOperations) Close() {
	p.downloads.Close()
	p.filtrations.Close()
}

// SubmitDownload records op as the download for row and enqueues it. It
// returns false without recording op if row already has a download in flight
// or the queue is closed.
func (p *PendingOperations) SubmitDownload(row int, op *Operation) bool {
	return p.submit(p.downloadsInFlight, p.downloads, PhaseDownload, row, op)
}

// SubmitFiltration records op as the filtration for row and enqueues it. It
// returns false without recording op if row already has a filtration in
// flight or the queue is closed.
func (p *PendingOperations) SubmitFiltration(row int, op *Operation) bool {
	return p.submit(p.filtrationsInFlight, p.filtrations, PhaseFiltration, row, op)
}

func (p *PendingOperations) submit(inFlight map[int]*Operation, q *Queue, phase Phase, row int, op *Operation) bool {
	if _, busy := inFlight[row]; busy {
		return false
	}
	if !q.Add(op) {
		p.logger.Debug("Operation rejected by closed queue", "phase", string(phase), "row", row)
		return false
	}
	inFlight[row] = op
	p.metrics.setInFlight(phase, len(inFlight))

	p.logger.Debug("Operation submitted",
		"operation_id", op.ID.String(),
		"phase", string(phase),
		"row", row,
	)
	return true
}

// CancelAndRemove cancels any download or filtration in flight for row and
// drops its bookkeeping at once, without waiting for the work to stop.
func (p *PendingOperations) CancelAndRemove(row int) {
	if op, ok := p.downloadsInFlight[row]; ok {
		op.Cancel()
		delete(p.downloadsInFlight, row)
		p.metrics.setInFlight(PhaseDownload, len(p.downloadsInFlight))
		p.logger.Debug("Download cancelled", "operation_id", op.ID.String(), "row", row)
	}
	if op, ok := p.filtrationsInFlight[row]; ok {
		op.Cancel()
		delete(p.filtrationsInFlight, row)
		p.metrics.setInFlight(PhaseFiltration, len(p.filtrationsInFlight))
		p.logger.Debug("Filtration cancelled", "operation_id", op.ID.String(), "row", row)
	}
}

// Finish removes the bookkeeping for a completed operation. It returns false
// if op is no longer the registered operation for its row and phase, e.g.
// because it was cancelled and replaced.
func (p *PendingOperations) Finish(op *Operation) bool {
	inFlight := p.downloadsInFlight
	if op.Phase == PhaseFiltration {
		inFlight = p.filtrationsInFlight
	}

	current, ok := inFlight[op.Row]
	if !ok || current != op {
		return false
	}
	delete(inFlight, op.Row)
	p.metrics.setInFlight(op.Phase, len(inFlight))
	return true
}

// Suspend stops both queues from starting new work
func (p *PendingOperations) Suspend() {
	p.suspended = true
	p.downloads.SetSuspended(true)
	p.filtrations.SetSuspended(true)
}

// Resume lets both queues start work again
func (p *PendingOperations) Resume() {
	p.suspended = false
	p.downloads.SetSuspended(false)
	p.filtrations.SetSuspended(false)
}

// Suspended reports whether the queues are suspended
func (p *PendingOperations) Suspended() bool {
	return p.suspended
}

// DownloadInFlight reports whether row has a download in flight
func (p *PendingOperations) DownloadInFlight(row int) bool {
	_, ok := p.downloadsInFlight[row]
	return ok
}

// FiltrationInFlight reports whether row has a filtration in flight
func (p *PendingOperations) FiltrationInFlight(row int) bool {
	_, ok := p.filtrationsInFlight[row]
	return ok
}

// InFlightRows returns the union of rows with a download or filtration in flight
func (p *PendingOperations) InFlightRows() map[int]struct{} {
	rows := make(map[int]struct{}, len(p.downloadsInFlight)+len(p.filtrationsInFlight))
	for row := range p.downloadsInFlight {
		rows[row] = struct{}{}
	}
	for row := range p.filtrationsInFlight {
		rows[row] = struct{}{}
	}
	return rows
}

// QueueLen returns how many operations wait in the queue for phase
func (p *PendingOperations) QueueLen(phase Phase) int {
	if phase == PhaseFiltration {
		return p.filtrations.Len()
	}
	return p.downloads.Len()
}
