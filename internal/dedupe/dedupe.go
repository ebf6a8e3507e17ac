// Package dedupe keeps a ledger of exported photos so repeated exports skip
// work that already landed in the backend.
package dedupe

import (
	"context"
	"sync"
)

// Tracker records export attempts keyed by photo
type Tracker interface {
	// Record notes an export of key and returns how many times it has been seen
	Record(ctx context.Context, key, location string, filterVersion int) (int, error)

	// SeenCount returns how many times key was recorded, 0 if never
	SeenCount(ctx context.Context, key string) (int, error)
}

// MemoryTracker is a process-local Tracker
type MemoryTracker struct {
	mu   sync.Mutex
	seen map[string]int
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{seen: make(map[string]int)}
}

func (t *MemoryTracker) Record(_ context.Context, key, _ string, _ int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[key]++
	return t.seen[key], nil
}

func (t *MemoryTracker) SeenCount(_ context.Context, key string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seen[key], nil
}
