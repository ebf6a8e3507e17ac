package server

import (
	"sync"

	"github.com/tendant/simple-photo-pipeline/internal/logging"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

// RowTracker is a presenter that counts redraws per row so HTTP clients can
// poll for changes.
type RowTracker struct {
	mu        sync.RWMutex
	revisions map[int]uint64
	logger    logging.Logger
}

func NewRowTracker(logger logging.Logger) *RowTracker {
	return &RowTracker{revisions: make(map[int]uint64), logger: logger}
}

func (t *RowTracker) RowChanged(row int, r photo.Render) {
	t.mu.Lock()
	t.revisions[row]++
	rev := t.revisions[row]
	t.mu.Unlock()

	t.logger.Debug("Row changed", "row", row, "title", r.Title, "busy", r.Busy, "failed", r.Failed, "revision", rev)
}

// Revision returns how many times row has been redrawn
func (t *RowTracker) Revision(row int) uint64 {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revisions[row]
}
