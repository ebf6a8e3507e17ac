// Package tasks holds the units of work executed on the operation queues:
// downloading a photo and applying the sepia filter to it. Tasks write their
// results into the photo record and report completion through a callback;
// they never touch scheduling state.
package tasks

import (
	"context"
)

// Token is the cancellation handle a task polls at its checkpoints
type Token interface {
	Context() context.Context
	IsCancelled() bool

	// Commit applies fn only if the token is not cancelled, atomically with
	// respect to cancellation.
	Commit(fn func()) bool
}

// Outcome describes how a task ended
type Outcome string

const (
	OutcomeDownloaded   Outcome = "downloaded"
	OutcomeFailed       Outcome = "failed"
	OutcomeFiltered     Outcome = "filtered"
	OutcomeFilterFailed Outcome = "filter_failed"
	OutcomeSkipped      Outcome = "skipped"
)

// Result is passed to the completion callback. It is never delivered for a
// cancelled task.
type Result struct {
	Row     int
	Outcome Outcome
	Err     error
}

// DoneFunc receives the result of a task that ran to completion. It is
// invoked on the worker goroutine and should hand off quickly.
type DoneFunc func(Result)

func (f DoneFunc) call(r Result) {
	if f != nil {
		f(r)
	}
}
