package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-photo-pipeline/internal/config"
	"github.com/tendant/simple-photo-pipeline/internal/coordinator"
	"github.com/tendant/simple-photo-pipeline/internal/logging"
	"github.com/tendant/simple-photo-pipeline/internal/mainloop"
	"github.com/tendant/simple-photo-pipeline/internal/manifest"
	"github.com/tendant/simple-photo-pipeline/internal/operations"
	"github.com/tendant/simple-photo-pipeline/internal/storage"
	"github.com/tendant/simple-photo-pipeline/internal/tasks"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

// loadConfig reads the config file and applies command line overrides
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.ManifestURL != "" {
		cfg.Manifest.URL = o.ManifestURL
	}
	if o.ManifestRoot != "" {
		cfg.Manifest.Root = o.ManifestRoot
	}
	if o.ManifestGlob != "" {
		cfg.Manifest.Glob = o.ManifestGlob
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	return cfg, nil
}

func (o *RootOptions) newLogger(cfg *config.Config) logging.Logger {
	return logging.New(o.ErrOut, cfg.Logging.Level, cfg.Logging.Format)
}

// runningPipeline is the running core shared by every command
type runningPipeline struct {
	loop     *mainloop.Loop
	view     *coordinator.ListView
	coord    *coordinator.Coordinator
	registry *prometheus.Registry

	cancel context.CancelFunc
	done   chan struct{}
}

func newFetcher(cfg *config.Config) (storage.Fetcher, error) {
	files, err := storage.NewFileFetcher("")
	if err != nil {
		return nil, err
	}
	httpFetcher := storage.NewHTTPFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent)

	return storage.NewSchemeFetcher().
		Handle(httpFetcher, "http", "https").
		Handle(files, "file"), nil
}

func loadRecords(ctx context.Context, cfg *config.Config, fetcher storage.Fetcher) ([]*photo.Record, error) {
	var (
		entries []manifest.Entry
		err     error
	)
	switch {
	case cfg.Manifest.URL != "":
		source, perr := url.Parse(cfg.Manifest.URL)
		if perr != nil {
			return nil, fmt.Errorf("invalid manifest url: %w", perr)
		}
		if source.Scheme == "" {
			abs, aerr := filepath.Abs(source.Path)
			if aerr != nil {
				return nil, fmt.Errorf("invalid manifest path: %w", aerr)
			}
			source = &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
		}
		entries, err = manifest.Fetch(ctx, fetcher, source)
	case cfg.Manifest.Glob != "":
		entries, err = manifest.Glob(cfg.Manifest.Root, cfg.Manifest.Glob)
	default:
		return nil, errors.New("no manifest configured")
	}
	if err != nil {
		return nil, err
	}
	return manifest.Records(entries)
}

// startPipeline loads the manifest and starts the main loop and coordinator
func startPipeline(ctx context.Context, cfg *config.Config, logger logging.Logger, presenter coordinator.Presenter) (*runningPipeline, error) {
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}

	records, err := loadRecords(ctx, cfg, fetcher)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	logger.Info("Manifest loaded", "photos", len(records))

	registry := prometheus.NewRegistry()
	loop := mainloop.New(256)
	view := coordinator.NewListView(len(records), cfg.Viewport.PageSize)
	coord := coordinator.New(loop, records, view, presenter, coordinator.Options{
		Fetcher:      fetcher,
		Filter:       tasks.NewSepia(cfg.Filter.Intensity),
		FetchTimeout: cfg.Fetch.Timeout,
		Logger:       logger,
		Metrics:      operations.NewMetrics(registry),
	})

	loopCtx, cancel := context.WithCancel(ctx)
	p := &runningPipeline{
		loop:     loop,
		view:     view,
		coord:    coord,
		registry: registry,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_ = loop.Run(loopCtx)
	}()

	if err := coord.Start(loopCtx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Close cancels outstanding work, waits for running tasks and stops the loop
func (p *runningPipeline) Close() {
	p.cancel()
	p.coord.Close()
	<-p.done
}
