package coordinator

import (
	"sync"

	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

// Viewport reports which rows are currently on screen
type Viewport interface {
	VisibleRows() []int
}

// Presenter is told when exactly one row needs to be redrawn. It is called on
// the main loop and must not call back into the Coordinator synchronously.
type Presenter interface {
	RowChanged(row int, r photo.Render)
}

// PresenterFunc adapts a function to the Presenter interface
type PresenterFunc func(row int, r photo.Render)

func (f PresenterFunc) RowChanged(row int, r photo.Render) {
	f(row, r)
}

// ListView is a headless scrolling window over a fixed number of rows. It is
// safe for concurrent use.
type ListView struct {
	mu    sync.Mutex
	rows  int
	first int
	count int
}

// NewListView creates a view over rows rows showing pageSize rows at a time,
// starting at the top.
func NewListView(rows, pageSize int) *ListView {
	if pageSize < 1 {
		pageSize = 1
	}
	return &ListView{rows: rows, count: pageSize}
}

// VisibleRows returns the row indices inside the window, in order
func (v *ListView) VisibleRows() []int {
	v.mu.Lock()
	defer v.mu.Unlock()

	end := min(v.first+v.count, v.rows)
	visible := make([]int, 0, max(end-v.first, 0))
	for row := v.first; row < end; row++ {
		visible = append(visible, row)
	}
	return visible
}

// ScrollTo moves the window so it starts at first, clamped to the list
func (v *ListView) ScrollTo(first int) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.first = v.clamp(first)
	return v.first
}

// SetWindow moves and resizes the window
func (v *ListView) SetWindow(first, count int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if count < 0 {
		count = 0
	}
	v.count = count
	v.first = v.clamp(first)
}

// Window returns the first visible row and the window size
func (v *ListView) Window() (first, count int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.first, v.count
}

// Rows returns the total number of rows
func (v *ListView) Rows() int {
	return v.rows
}

func (v *ListView) clamp(first int) int {
	last := max(v.rows-v.count, 0)
	return max(0, min(first, last))
}
