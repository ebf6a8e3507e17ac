package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// LocalUploader writes exported images under a directory on the local
// filesystem and returns file:// URLs.
type LocalUploader struct {
	baseDir string
}

// NewLocalUploader creates baseDir if needed and resolves it to an absolute
// path.
func NewLocalUploader(baseDir string) (*LocalUploader, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to resolve export directory %q: %w", baseDir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create export directory %q: %w", abs, err)
	}
	return &LocalUploader{baseDir: abs}, nil
}

// Upload writes the image through a temporary file in the destination
// directory, so a reader never sees a partly written photo. Metadata is not
// stored.
func (u *LocalUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	name, err := cleanObjectName(req.ObjectName)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dest := filepath.Join(u.baseDir, filepath.FromSlash(name))
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create directory for %q: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create temp file for %q: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, req.Content); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("storage: failed to write %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("storage: failed to flush %q: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("storage: failed to move %q into place: %w", name, err)
	}

	return &UploadResult{
		ObjectName: name,
		URL:        (&url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}).String(),
	}, nil
}
