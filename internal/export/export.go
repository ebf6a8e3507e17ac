// Package export scrolls through the whole photo list, waits for each row to
// finish processing and uploads the final images.
package export

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/tendant/simple-photo-pipeline/internal/coordinator"
	"github.com/tendant/simple-photo-pipeline/internal/dedupe"
	"github.com/tendant/simple-photo-pipeline/internal/logging"
	"github.com/tendant/simple-photo-pipeline/internal/storage"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

// FilterVersion is recorded in the ledger with each export
const FilterVersion = 1

// Status of one exported row
type Status string

const (
	StatusExported Status = "exported"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

type Options struct {
	Prefix       string
	JPEGQuality  int
	PollInterval time.Duration
}

// Result describes what happened to one row
type Result struct {
	Row        int    `json:"row"`
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Filtered   bool   `json:"filtered"`
	ObjectName string `json:"object_name,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Report summarises an export run
type Report struct {
	Exported int      `json:"exported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Results  []Result `json:"results"`
}

func (r *Report) add(res Result) {
	switch res.Status {
	case StatusExported:
		r.Exported++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
	r.Results = append(r.Results, res)
}

type Exporter struct {
	coord    *coordinator.Coordinator
	view     *coordinator.ListView
	uploader storage.Uploader
	tracker  dedupe.Tracker
	logger   logging.Logger
	opts     Options
}

func New(coord *coordinator.Coordinator, view *coordinator.ListView, uploader storage.Uploader, tracker dedupe.Tracker, logger logging.Logger, opts Options) *Exporter {
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 80
	}
	if tracker == nil {
		tracker = dedupe.NewMemoryTracker()
	}
	return &Exporter{
		coord:    coord,
		view:     view,
		uploader: uploader,
		tracker:  tracker,
		logger:   logger,
		opts:     opts,
	}
}

// Run pages through every row and exports each one once it settles. Rows
// that failed to load are reported but not uploaded.
func (e *Exporter) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	done := make(map[int]bool)

	err := e.coord.ScrollThrough(ctx, e.view, e.opts.PollInterval, func(rows []int) error {
		for _, row := range rows {
			if done[row] {
				continue
			}
			done[row] = true

			res, err := e.exportRow(ctx, row)
			if err != nil {
				return err
			}
			report.add(res)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	e.logger.Info("Export finished",
		"exported", report.Exported,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (e *Exporter) exportRow(ctx context.Context, row int) (Result, error) {
	snap, err := e.coord.Snapshot(row)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Row:      row,
		Name:     snap.Name,
		Filtered: snap.State == photo.StateFiltered,
	}
	if snap.State == photo.StateFailed {
		res.Status = StatusFailed
		return res, nil
	}

	key := ledgerKey(snap)
	seen, err := e.tracker.SeenCount(ctx, key)
	if err != nil {
		return res, fmt.Errorf("failed to check export ledger: %w", err)
	}
	if seen > 0 {
		e.logger.Debug("Skipping photo exported before", "row", row, "name", snap.Name, "seen_count", seen)
		res.Status = StatusSkipped
		return res, nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, snap.Image, imaging.JPEG, imaging.JPEGQuality(e.opts.JPEGQuality)); err != nil {
		return res, fmt.Errorf("JPEG encode failed for row %d: %w", row, err)
	}

	res.ObjectName = objectName(e.opts.Prefix, row, snap.Name)
	uploaded, err := e.uploader.Upload(ctx, &storage.UploadRequest{
		ObjectName:  res.ObjectName,
		Content:     &buf,
		ContentType: "image/jpeg",
		Metadata: map[string]string{
			"source_url":     snap.SourceURL,
			"variant":        variant(snap),
			"row":            strconv.Itoa(row),
			"filter_version": strconv.Itoa(FilterVersion),
		},
	})
	if err != nil {
		return res, fmt.Errorf("upload failed for row %d: %w", row, err)
	}
	res.URL = uploaded.URL

	if _, err := e.tracker.Record(ctx, key, uploaded.URL, FilterVersion); err != nil {
		return res, fmt.Errorf("failed to record export: %w", err)
	}

	e.logger.Info("Photo exported", "row", row, "name", snap.Name, "object", uploaded.ObjectName, "url", uploaded.URL)
	res.Status = StatusExported
	return res, nil
}

// ledgerKey identifies a photo by its source and whether it was filtered, so
// a later export can replace an unfiltered upload.
func ledgerKey(snap photo.Snapshot) string {
	return variant(snap) + ":" + snap.SourceURL
}

func variant(snap photo.Snapshot) string {
	if snap.State == photo.StateFiltered {
		return "sepia"
	}
	return "original"
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func objectName(prefix string, row int, name string) string {
	base := strings.Trim(unsafeChars.ReplaceAllString(name, "-"), "-")
	if base == "" {
		base = "photo"
	}
	base = strings.TrimSuffix(base, ".jpg")
	obj := fmt.Sprintf("%04d-%s.jpg", row, base)
	if prefix != "" {
		obj = strings.TrimSuffix(prefix, "/") + "/" + obj
	}
	return obj
}
