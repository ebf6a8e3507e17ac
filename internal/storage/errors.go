package storage

import "errors"

var (
	ErrNotFound          = errors.New("object not found")
	ErrUnexpectedStatus  = errors.New("unexpected status code")
	ErrPathTraversal     = errors.New("path traversal detected")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrTooLarge          = errors.New("payload exceeds size limit")
)
