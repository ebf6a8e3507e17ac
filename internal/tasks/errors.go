package tasks

import "errors"

var (
	// ErrEmptyPayload is returned when a fetch succeeds with zero bytes
	ErrEmptyPayload = errors.New("empty payload")

	// ErrFetch wraps transport failures while retrieving a photo
	ErrFetch = errors.New("fetch failed")

	// ErrDecode is returned when the payload is not a decodable image
	ErrDecode = errors.New("image decode failed")

	// ErrFilter wraps filter engine failures
	ErrFilter = errors.New("filter failed")
)
