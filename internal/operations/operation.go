// Package operations provides admission control and bookkeeping for
// background photo work: two serial queues, one for downloads and one for
// filtrations, plus per-row tracking of in-flight operations.
package operations

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Phase identifies which queue an operation belongs to
type Phase string

const (
	PhaseDownload   Phase = "download"
	PhaseFiltration Phase = "filtration"
)

// Operation is one unit of queued work for one row, carrying its own
// cancellation token.
type Operation struct {
	ID    uuid.UUID
	Row   int
	Phase Phase

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders Commit against Cancel
	mu  sync.Mutex
	run func(op *Operation)
}

// NewOperation creates an operation whose context derives from parent.
// run is invoked on a queue worker goroutine.
func NewOperation(parent context.Context, row int, phase Phase, run func(op *Operation)) *Operation {
	ctx, cancel := context.WithCancel(parent)
	return &Operation{
		ID:     uuid.New(),
		Row:    row,
		Phase:  phase,
		ctx:    ctx,
		cancel: cancel,
		run:    run,
	}
}

// Context is cancelled when the operation is cancelled
func (o *Operation) Context() context.Context {
	return o.ctx
}

// Cancel signals cancellation. It does not wait for the running work to
// observe it, but once Cancel returns no Commit from this operation succeeds.
func (o *Operation) Cancel() {
	o.mu.Lock()
	o.cancel()
	o.mu.Unlock()
}

// IsCancelled polls the cancellation token
func (o *Operation) IsCancelled() bool {
	return o.ctx.Err() != nil
}

// Commit runs fn unless the operation has been cancelled, and reports
// whether fn ran.
func (o *Operation) Commit(fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// execute runs the work and reports whether the token was cancelled by the
// time it returned. The context is released afterwards.
func (o *Operation) execute() (cancelled bool) {
	defer o.cancel()
	if o.run != nil {
		o.run(o)
	}
	return o.ctx.Err() != nil
}
