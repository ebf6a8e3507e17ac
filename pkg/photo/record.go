// Package photo provides the record for one remote photo and its processing
// state. A record moves forward through
//
//	new → downloaded | failed, downloaded → filtered
//
// and always holds an image, starting with Placeholder.
package photo

import (
	"fmt"
	"image"
	"net/url"
	"sync"
)

// Record is one row of the photo list. Reads are safe from any goroutine;
// mutation is expected from the single task that owns the record at a time.
type Record struct {
	mu           sync.RWMutex
	name         string
	sourceURL    *url.URL
	state        State
	image        image.Image
	filterFailed bool
}

// NewRecord creates a record in StateNew holding the shared placeholder
func NewRecord(name string, sourceURL *url.URL) *Record {
	return &Record{
		name:      name,
		sourceURL: sourceURL,
		state:     StateNew,
		image:     Placeholder(),
	}
}

// Name returns the photo name
func (r *Record) Name() string {
	return r.name
}

// SourceURL returns the remote location of the photo
func (r *Record) SourceURL() *url.URL {
	return r.sourceURL
}

// State returns the current processing state
func (r *Record) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Image returns the current image, never nil
func (r *Record) Image() image.Image {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.image
}

// FilterFailed reports whether the filter engine failed for this record
func (r *Record) FilterFailed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filterFailed
}

// Snapshot returns a consistent copy of the record's fields
func (r *Record) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Name:         r.name,
		State:        r.state,
		Image:        r.image,
		FilterFailed: r.filterFailed,
	}
	if r.sourceURL != nil {
		s.SourceURL = r.sourceURL.String()
	}
	return s
}

// MarkDownloaded stores the downloaded image and moves the record to StateDownloaded
func (r *Record) MarkDownloaded(img image.Image) error {
	return r.update(StateDownloaded, img)
}

// MarkFailed moves the record to StateFailed showing img
func (r *Record) MarkFailed(img image.Image) error {
	return r.update(StateFailed, img)
}

// MarkFiltered stores the filtered image and moves the record to StateFiltered
func (r *Record) MarkFiltered(img image.Image) error {
	return r.update(StateFiltered, img)
}

// MarkFilterFailed records a filter engine failure. The record stays
// downloaded and keeps its unfiltered image.
func (r *Record) MarkFilterFailed() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateDownloaded {
		return fmt.Errorf("%w: filter failure recorded in state %s", ErrInvalidTransition, r.state)
	}
	r.filterFailed = true
	return nil
}

func (r *Record) update(to State, img image.Image) error {
	if img == nil {
		return ErrNilImage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !CanTransition(r.state, to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, r.state, to)
	}
	r.state = to
	r.image = img
	return nil
}
