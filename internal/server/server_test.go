package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-photo-pipeline/internal/coordinator"
	"github.com/tendant/simple-photo-pipeline/internal/logging"
	"github.com/tendant/simple-photo-pipeline/internal/mainloop"
	"github.com/tendant/simple-photo-pipeline/internal/operations"
	"github.com/tendant/simple-photo-pipeline/internal/storage"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
	"github.com/tendant/simple-photo-pipeline/pkg/pipeline"
)

func pngBytes() []byte {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(3, 3, color.NRGBA{R: 100, G: 110, B: 120, A: 255}), imaging.PNG); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T, rows, pageSize int) (*httptest.Server, *coordinator.Coordinator) {
	t.Helper()

	records := make([]*photo.Record, rows)
	for i := range records {
		u, err := url.Parse(fmt.Sprintf("test://photos/%d", i))
		require.NoError(t, err)
		records[i] = photo.NewRecord(fmt.Sprintf("photo %d", i), u)
	}

	payload := pngBytes()
	fetcher := storage.FetcherFunc(func(ctx context.Context, u *url.URL) ([]byte, error) {
		return payload, nil
	})

	reg := prometheus.NewRegistry()
	loop := mainloop.New(64)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()

	view := coordinator.NewListView(rows, pageSize)
	tracker := NewRowTracker(logging.Nop())
	coord := coordinator.New(loop, records, view, tracker, coordinator.Options{
		Fetcher: fetcher,
		Logger:  logging.Nop(),
		Metrics: operations.NewMetrics(reg),
	})
	require.NoError(t, coord.Start(ctx))

	srv := httptest.NewServer(New(coord, view, tracker, reg, logging.Nop(), Options{}).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		coord.Close()
		<-loop.Done()
	})
	return srv, coord
}

func getJSON(t *testing.T, u string, v any) int {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func putViewport(t *testing.T, base, body string) pipeline.Viewport {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, base+"/viewport", strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out pipeline.Viewport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, 3, 2)

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(3), body["rows"])
	assert.Equal(t, false, body["settled"])
}

func TestServer_ViewportDrivesWork(t *testing.T) {
	srv, coord := newTestServer(t, 6, 2)

	vp := putViewport(t, srv.URL, `{"first":2,"dragging":true}`)
	assert.Equal(t, []int{2, 3}, vp.Visible)

	vp = putViewport(t, srv.URL, `{"first":2,"count":2}`)
	assert.Equal(t, 2, vp.First)
	assert.Equal(t, []int{2, 3}, vp.Visible)

	require.Eventually(t, func() bool {
		var p pipeline.Photo
		getJSON(t, srv.URL+"/photos/3", &p)
		return p.State == string(photo.StateFiltered)
	}, 2*time.Second, 10*time.Millisecond)

	var photos []pipeline.Photo
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/photos", &photos))
	require.Len(t, photos, 6)
	assert.Equal(t, string(photo.StateNew), photos[0].State)
	assert.True(t, photos[0].Busy)
	assert.Equal(t, uint64(0), photos[0].Revision)
	assert.Equal(t, "photo 2", photos[2].Title)
	assert.Equal(t, "/photos/2/image", photos[2].ImageURL)

	require.Eventually(t, func() bool {
		var p pipeline.Photo
		getJSON(t, srv.URL+"/photos/2", &p)
		return p.Revision == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, coord.Settled())
}

func TestServer_Image(t *testing.T) {
	srv, _ := newTestServer(t, 1, 1)

	resp, err := http.Get(srv.URL + "/photos/0/image")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	img, err := imaging.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, photo.PlaceholderSize, img.Bounds().Dx())
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t, 2, 2)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/photos/9", &body))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/photos/abc", &body))

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/viewport", strings.NewReader(`{"count":-1}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPut, srv.URL+"/viewport", strings.NewReader(`not json`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, 2, 2)
	putViewport(t, srv.URL, `{"first":0}`)

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return strings.Contains(buf.String(), `photo_pipeline_operations_total{outcome="completed",phase="download"}`)
	}, 2*time.Second, 10*time.Millisecond)
}
