package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tendant/simple-photo-pipeline/internal/config"
	"github.com/tendant/simple-photo-pipeline/internal/dedupe"
	"github.com/tendant/simple-photo-pipeline/internal/export"
	"github.com/tendant/simple-photo-pipeline/internal/logging"
	"github.com/tendant/simple-photo-pipeline/internal/storage"
)

type ExportOptions struct {
	*RootOptions

	Backend      string
	Dir          string
	Bucket       string
	Prefix       string
	PollInterval time.Duration
	JSON         bool
}

var (
	exportLong = templates.LongDesc(`
		Process every photo in the list and upload the final images as
		JPEG. Photos recorded in the export ledger are skipped.`)

	exportExample = templates.Examples(`
		# Export to a local directory
		photo-pipeline export --manifest-glob '*.jpg' --dir ./out

		# Export to a GCS bucket
		photo-pipeline export --manifest-url https://example.com/photos.json --backend gcs --bucket my-photos`)
)

func NewExportOptions(root *RootOptions) *ExportOptions {
	return &ExportOptions{RootOptions: root}
}

func NewExportCommand(o *ExportOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "export",
		DisableFlagsInUseLine: true,
		Short:                 "Process all photos and upload the results",
		Long:                  exportLong,
		Example:               exportExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.Backend, "backend", "b", "", "Export backend: local, gcs or content (default from config)")
	cmd.Flags().StringVarP(&o.Dir, "dir", "d", "", "Output directory for the local and content backends")
	cmd.Flags().StringVar(&o.Bucket, "bucket", "", "GCS bucket for the gcs backend")
	cmd.Flags().StringVar(&o.Prefix, "prefix", "sepia", "Object name prefix")
	cmd.Flags().DurationVar(&o.PollInterval, "poll-interval", 50*time.Millisecond, "How often a page is checked for completion")
	cmd.Flags().BoolVar(&o.JSON, "json", false, "Print the report as JSON")

	return cmd
}

func (o *ExportOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *ExportOptions) Validate() error {
	return nil
}

func (o *ExportOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if o.Backend != "" {
		cfg.Export.Backend = o.Backend
	}
	if o.Dir != "" {
		cfg.Export.Dir = o.Dir
	}
	if o.Bucket != "" {
		cfg.Export.Bucket = o.Bucket
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := o.newLogger(cfg)

	uploader, closeUploader, err := newUploader(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeUploader()

	tracker, closeTracker, err := newTracker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTracker()

	p, err := startPipeline(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer p.Close()

	exporter := export.New(p.coord, p.view, uploader, tracker, logger, export.Options{
		Prefix:       o.Prefix,
		JPEGQuality:  cfg.Export.Quality,
		PollInterval: o.PollInterval,
	})
	report, err := exporter.Run(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if o.JSON {
		enc := json.NewEncoder(o.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	for _, res := range report.Results {
		fmt.Fprintf(o.Out, "row %4d  %-8s %s %s\n", res.Row, res.Status, res.Name, res.URL)
	}
	fmt.Fprintf(o.Out, "\n%d exported, %d skipped, %d failed\n", report.Exported, report.Skipped, report.Failed)
	return nil
}

func newUploader(ctx context.Context, cfg *config.Config) (storage.Uploader, func(), error) {
	switch cfg.Export.Backend {
	case config.BackendGCS:
		u, err := storage.NewGCSUploader(ctx, cfg.Export.Bucket, cfg.Export.SignedURLTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialise GCS uploader: %w", err)
		}
		return u, func() { _ = u.Close() }, nil
	case config.BackendContent:
		u, cleanup, err := storage.NewDevContentUploader(cfg.Export.Dir)
		if err != nil {
			return nil, nil, err
		}
		return u, cleanup, nil
	default:
		u, err := storage.NewLocalUploader(cfg.Export.Dir)
		if err != nil {
			return nil, nil, err
		}
		return u, func() {}, nil
	}
}

func newTracker(ctx context.Context, cfg *config.Config, logger logging.Logger) (dedupe.Tracker, func(), error) {
	if cfg.Export.LedgerDSN == "" {
		return dedupe.NewMemoryTracker(), func() {}, nil
	}
	t, err := dedupe.OpenSQLTracker(ctx, cfg.Export.LedgerDSN, logger)
	if err != nil {
		return nil, nil, err
	}
	return t, func() { _ = t.Close() }, nil
}
