package manifest

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-photo-pipeline/internal/storage"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    []Entry
		wantErr bool
	}{
		{
			name: "array keeps order",
			doc:  `[{"name":"b","url":"https://x/b.jpg"},{"name":"a","url":"https://x/a.jpg"}]`,
			want: []Entry{{Name: "b", URL: "https://x/b.jpg"}, {Name: "a", URL: "https://x/a.jpg"}},
		},
		{
			name: "object sorted by name",
			doc:  `{"Zebra":"https://x/z.jpg","Apple":"https://x/a.jpg"}`,
			want: []Entry{{Name: "Apple", URL: "https://x/a.jpg"}, {Name: "Zebra", URL: "https://x/z.jpg"}},
		},
		{name: "empty", doc: "  ", wantErr: true},
		{name: "scalar", doc: `"hello"`, wantErr: true},
		{name: "missing url", doc: `[{"name":"a"}]`, wantErr: true},
		{name: "malformed", doc: `[{"name":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.doc))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidManifest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetch_ResolvesRelativeURLs(t *testing.T) {
	fetcher := storage.FetcherFunc(func(ctx context.Context, u *url.URL) ([]byte, error) {
		assert.Equal(t, "https://photos.example.com/lists/photos.json", u.String())
		return []byte(`{"one":"img/1.jpg","two":"https://cdn.example.com/2.jpg"}`), nil
	})
	source, err := url.Parse("https://photos.example.com/lists/photos.json")
	require.NoError(t, err)

	entries, err := Fetch(context.Background(), fetcher, source)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "one", URL: "https://photos.example.com/lists/img/1.jpg"},
		{Name: "two", URL: "https://cdn.example.com/2.jpg"},
	}, entries)
}

func TestGlob(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.jpg", "a.jpg", "nested/c.jpg", "notes.txt"} {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	entries, err := Glob(root, "**/*.jpg")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.jpg", entries[0].Name)
	assert.Equal(t, "b.jpg", entries[1].Name)
	assert.Equal(t, "nested/c.jpg", entries[2].Name)

	u, err := url.Parse(entries[2].URL)
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	_, err = os.Stat(filepath.FromSlash(u.Path))
	require.NoError(t, err)
}

func TestRecords(t *testing.T) {
	records, err := Records([]Entry{
		{Name: "first", URL: "https://x/1.jpg"},
		{URL: "https://x/second.jpg"},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].Name())
	assert.Equal(t, "second.jpg", records[1].Name())
	assert.Equal(t, photo.StateNew, records[1].State())
	assert.Equal(t, "https://x/second.jpg", records[1].SourceURL().String())
}
