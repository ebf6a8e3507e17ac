// Package manifest loads the ordered list of photos shown by the pipeline,
// either from a JSON document or from a directory of local images.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tendant/simple-photo-pipeline/internal/storage"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

var ErrInvalidManifest = errors.New("invalid manifest")

// Entry is one photo in the list
type Entry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Fetch retrieves and parses the manifest at source. The document is either
// a JSON array of entries, kept in order, or an object mapping name to URL,
// ordered by name. Relative URLs resolve against source.
func Fetch(ctx context.Context, fetcher storage.Fetcher, source *url.URL) ([]Entry, error) {
	data, err := fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}

	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		ref, err := url.Parse(entries[i].URL)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %w", ErrInvalidManifest, entries[i].Name, err)
		}
		entries[i].URL = source.ResolveReference(ref).String()
	}
	return entries, nil
}

// Parse decodes a manifest document
func Parse(data []byte) ([]Entry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidManifest)
	}

	var entries []Entry
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
	case '{':
		var byName map[string]string
		if err := json.Unmarshal(data, &byName); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
		for name, u := range byName {
			entries = append(entries, Entry{Name: name, URL: u})
		}
		slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", ErrInvalidManifest)
	}

	for i, e := range entries {
		if e.URL == "" {
			return nil, fmt.Errorf("%w: entry %d has no url", ErrInvalidManifest, i)
		}
	}
	return entries, nil
}

// Glob lists regular files under root matching a doublestar pattern, e.g.
// "**/*.jpg". Entries are named by their path relative to root and carry
// file:// URLs.
func Glob(root, pattern string) ([]Entry, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", root, err)
	}

	matches, err := doublestar.Glob(os.DirFS(abs), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %w", ErrInvalidManifest, pattern, err)
	}
	slices.Sort(matches)

	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		u := &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(abs, filepath.FromSlash(m)))}
		entries = append(entries, Entry{Name: m, URL: u.String()})
	}
	return entries, nil
}

// Records builds one new record per entry, in order
func Records(entries []Entry) ([]*photo.Record, error) {
	records := make([]*photo.Record, 0, len(entries))
	for _, e := range entries {
		u, err := url.Parse(e.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %w", ErrInvalidManifest, e.Name, err)
		}
		name := e.Name
		if name == "" {
			name = filepath.Base(u.Path)
		}
		records = append(records, photo.NewRecord(name, u))
	}
	return records, nil
}
