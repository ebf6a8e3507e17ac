package photo

import "errors"

var (
	// ErrInvalidTransition is returned when a state change would move a record backwards
	ErrInvalidTransition = errors.New("invalid photo state transition")

	// ErrNilImage is returned when a nil image is assigned to a record
	ErrNilImage = errors.New("photo image must not be nil")
)
