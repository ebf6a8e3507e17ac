// Package mainloop runs closures one at a time on a single goroutine. State
// confined to that goroutine needs no locking.
package mainloop

import (
	"context"
	"errors"
	"sync"
)

var ErrStopped = errors.New("main loop stopped")

// Loop is a serial executor. Work is handed to it with Post or Do and runs in
// submission order on the goroutine that called Run.
type Loop struct {
	work chan func()
	done chan struct{}

	once sync.Once
}

// New creates a loop whose work channel holds buffer closures before Post
// starts blocking.
func New(buffer int) *Loop {
	if buffer < 0 {
		buffer = 0
	}
	return &Loop{
		work: make(chan func(), buffer),
		done: make(chan struct{}),
	}
}

// Run executes posted closures until ctx is cancelled. Work still queued at
// that point is dropped. Run must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.work:
			fn()
		}
	}
}

// Post schedules fn without waiting for it. It returns false if the loop has
// stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.work <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to return. Calling Do from inside
// the loop deadlocks.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// fn may have been the last thing to run
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Done is closed once Run has returned
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
