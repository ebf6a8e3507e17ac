// Package storage moves photo bytes in and out of the pipeline. Fetchers read
// source images by URL; uploaders persist exported images to a backend.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"
)

// Fetcher retrieves the raw bytes behind a source URL
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, u *url.URL) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	return f(ctx, u)
}

// Uploader persists exported images to a storage backend
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
}

type UploadRequest struct {
	// ObjectName is the slash separated path of the object within the backend.
	ObjectName string

	// Content is the data to be uploaded.
	Content io.Reader

	// ContentType is the MIME type of the content, e.g. "image/jpeg".
	ContentType string

	// Metadata describes where the photo came from. Backends that support
	// custom object metadata store it alongside the image.
	Metadata map[string]string
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	ObjectName string

	// URL locates the stored object. Signed GCS URLs are valid until
	// ExpiresAt; every other URL has a zero ExpiresAt.
	URL string

	ExpiresAt time.Time
}

// cleanObjectName normalises a slash separated object name and rejects names
// that are empty, absolute or climb out of the backend root.
func cleanObjectName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("storage: %w: %q", ErrPathTraversal, name)
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage: %w: %q", ErrPathTraversal, name)
	}
	return cleaned, nil
}
