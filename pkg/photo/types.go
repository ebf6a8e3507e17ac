package photo

import "image"

// State is the processing state of a photo record
type State string

// State constants
const (
	StateNew        State = "new"
	StateDownloaded State = "downloaded"
	StateFiltered   State = "filtered"
	StateFailed     State = "failed"
)

// FailedTitle replaces the photo name for rows that could not be loaded
const FailedTitle = "Failed to load"

// String returns the string representation of State
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if no further work can be scheduled from this state
func (s State) IsTerminal() bool {
	return s == StateFiltered || s == StateFailed
}

// CanTransition reports whether a record may move from one state to another.
// States only move forward; nothing returns to StateNew.
func CanTransition(from, to State) bool {
	switch from {
	case StateNew:
		return to == StateDownloaded || to == StateFailed
	case StateDownloaded:
		return to == StateFiltered || to == StateDownloaded
	}
	return false
}

// Snapshot is a point-in-time copy of a record, safe to hand across goroutines
type Snapshot struct {
	Name         string
	SourceURL    string
	State        State
	Image        image.Image
	FilterFailed bool
}

// Settled returns true once the record will not be scheduled for more work
func (s Snapshot) Settled() bool {
	return s.State.IsTerminal() || (s.State == StateDownloaded && s.FilterFailed)
}

// Render is what a list cell needs to draw one row
type Render struct {
	Title  string      `json:"title"`
	Image  image.Image `json:"-"`
	Busy   bool        `json:"busy"`
	Failed bool        `json:"failed"`
}

// Render builds the cell tuple for this snapshot
func (s Snapshot) Render() Render {
	if s.State == StateFailed {
		return Render{
			Title:  FailedTitle,
			Image:  s.Image,
			Failed: true,
		}
	}
	return Render{
		Title: s.Name,
		Image: s.Image,
		Busy:  !s.Settled(),
	}
}
