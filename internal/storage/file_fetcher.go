package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileFetcher reads source images from the local filesystem via file:// URLs
type FileFetcher struct {
	baseDir string
}

// NewFileFetcher creates a fetcher confined to baseDir. An empty baseDir
// allows any absolute path.
func NewFileFetcher(baseDir string) (*FileFetcher, error) {
	if baseDir == "" {
		return &FileFetcher{}, nil
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %q: %w", baseDir, err)
	}
	return &FileFetcher{baseDir: abs}, nil
}

func (f *FileFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := f.resolve(u)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, u.Path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (f *FileFetcher) resolve(u *url.URL) (string, error) {
	path := filepath.Clean(filepath.FromSlash(u.Path))
	if f.baseDir == "" {
		return path, nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(f.baseDir, path)
	}
	rel, err := filepath.Rel(f.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, u.Path)
	}
	return path, nil
}
