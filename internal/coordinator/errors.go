package coordinator

import "errors"

// ErrRowOutOfRange is returned for a row index outside the record list
var ErrRowOutOfRange = errors.New("row out of range")
