package export

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-photo-pipeline/internal/coordinator"
	"github.com/tendant/simple-photo-pipeline/internal/dedupe"
	"github.com/tendant/simple-photo-pipeline/internal/logging"
	"github.com/tendant/simple-photo-pipeline/internal/mainloop"
	"github.com/tendant/simple-photo-pipeline/internal/storage"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

func newPipeline(t *testing.T, rows, pageSize int, failRow int) (*coordinator.Coordinator, *coordinator.ListView) {
	t.Helper()

	records := make([]*photo.Record, rows)
	for i := range records {
		u, err := url.Parse(fmt.Sprintf("test://photos/%d", i))
		require.NoError(t, err)
		records[i] = photo.NewRecord(fmt.Sprintf("Photo %d.jpg", i), u)
	}

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(5, 5, color.NRGBA{R: 80, G: 90, B: 100, A: 255}), imaging.PNG))
	payload := buf.Bytes()
	failPath := fmt.Sprintf("/%d", failRow)

	fetcher := storage.FetcherFunc(func(ctx context.Context, u *url.URL) ([]byte, error) {
		if u.Path == failPath {
			return nil, storage.ErrNotFound
		}
		return payload, nil
	})

	loop := mainloop.New(64)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()

	view := coordinator.NewListView(rows, pageSize)
	coord := coordinator.New(loop, records, view, nil, coordinator.Options{
		Fetcher: fetcher,
		Logger:  logging.Nop(),
	})
	require.NoError(t, coord.Start(ctx))

	t.Cleanup(func() {
		cancel()
		coord.Close()
		<-loop.Done()
	})
	return coord, view
}

func TestExporter_Run(t *testing.T) {
	coord, view := newPipeline(t, 5, 2, 3)
	dir := t.TempDir()
	uploader, err := storage.NewLocalUploader(dir)
	require.NoError(t, err)
	tracker := dedupe.NewMemoryTracker()

	exp := New(coord, view, uploader, tracker, logging.Nop(), Options{Prefix: "sepia", PollInterval: 5 * time.Millisecond})
	report, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Exported)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	require.Len(t, report.Results, 5)

	for _, res := range report.Results {
		if res.Row == 3 {
			assert.Equal(t, StatusFailed, res.Status)
			continue
		}
		assert.Equal(t, StatusExported, res.Status)
		assert.True(t, res.Filtered)

		f, err := os.Open(filepath.Join(dir, filepath.FromSlash(res.ObjectName)))
		require.NoError(t, err)
		img, err := imaging.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 5, img.Bounds().Dx())
	}
	assert.Equal(t, "sepia/0000-Photo-0.jpg", report.Results[0].ObjectName)

	again, err := New(coord, view, uploader, tracker, logging.Nop(), Options{Prefix: "sepia", PollInterval: 5 * time.Millisecond}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Exported)
	assert.Equal(t, 4, again.Skipped)
	assert.Equal(t, 1, again.Failed)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "0007-Sunset-over-bay.jpg", objectName("", 7, "Sunset over bay"))
	assert.Equal(t, "out/0001-photo.jpg", objectName("out/", 1, "???"))
	assert.Equal(t, "0002-a.b.jpg", objectName("", 2, "a.b.jpg"))
}

type recordingUploader struct {
	metadata map[string]map[string]string
}

func (r *recordingUploader) Upload(ctx context.Context, req *storage.UploadRequest) (*storage.UploadResult, error) {
	if r.metadata == nil {
		r.metadata = make(map[string]map[string]string)
	}
	r.metadata[req.ObjectName] = req.Metadata
	return &storage.UploadResult{ObjectName: req.ObjectName, URL: "mem://" + req.ObjectName}, nil
}

func TestExporter_UploadMetadata(t *testing.T) {
	coord, view := newPipeline(t, 2, 2, -1)
	uploader := &recordingUploader{}

	report, err := New(coord, view, uploader, dedupe.NewMemoryTracker(), logging.Nop(), Options{PollInterval: 5 * time.Millisecond}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Exported)

	assert.Equal(t, map[string]string{
		"source_url":     "test://photos/1",
		"variant":        "sepia",
		"row":            "1",
		"filter_version": "1",
	}, uploader.metadata["0001-Photo-1.jpg"])
}
