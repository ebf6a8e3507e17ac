package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "photo-pipeline-test", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte("payload"))
		case "/partial":
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte("partial"))
		case "/non-authoritative":
			w.WriteHeader(http.StatusNonAuthoritativeInfo)
			_, _ = w.Write([]byte("proxied"))
		case "/missing":
			http.NotFound(w, r)
		case "/slow":
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(200*time.Millisecond, "photo-pipeline-test")

	t.Run("ok", func(t *testing.T) {
		data, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/ok"))
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	for path, want := range map[string]string{"/partial": "partial", "/non-authoritative": "proxied"} {
		t.Run("2xx "+path, func(t *testing.T) {
			data, err := f.Fetch(context.Background(), mustParse(t, srv.URL+path))
			require.NoError(t, err)
			assert.Equal(t, want, string(data))
		})
	}

	t.Run("not found", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/missing"))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/boom"))
		require.ErrorIs(t, err, ErrUnexpectedStatus)
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), mustParse(t, srv.URL+"/slow"))
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Fetch(ctx, mustParse(t, srv.URL+"/ok"))
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("too large", func(t *testing.T) {
		small := NewHTTPFetcher(time.Second, "photo-pipeline-test")
		small.maxBytes = 3
		_, err := small.Fetch(context.Background(), mustParse(t, srv.URL+"/ok"))
		require.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("jpeg"), 0o644))

	f, err := NewFileFetcher(dir)
	require.NoError(t, err)

	data, err := f.Fetch(context.Background(), &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(dir, "a.jpg"))})
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	_, err = f.Fetch(context.Background(), &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(dir, "b.jpg"))})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.Fetch(context.Background(), &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(dir, "..", "etc", "passwd"))})
	require.ErrorIs(t, err, ErrPathTraversal)
}

func TestSchemeFetcher(t *testing.T) {
	calls := 0
	fake := FetcherFunc(func(ctx context.Context, u *url.URL) ([]byte, error) {
		calls++
		return []byte(u.Host), nil
	})

	m := NewSchemeFetcher().Handle(fake, "http", "https")

	data, err := m.Fetch(context.Background(), mustParse(t, "HTTPS://example.com/x.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "example.com", string(data))
	assert.Equal(t, 1, calls)

	_, err = m.Fetch(context.Background(), mustParse(t, "ftp://example.com/x.jpg"))
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}
