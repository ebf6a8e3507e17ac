package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tendant/simple-photo-pipeline/internal/server"
)

type ServeOptions struct {
	*RootOptions

	Addr string
}

var (
	serveLong = templates.LongDesc(`
		Start the photo pipeline HTTP server. Clients move the visible
		window with PUT /viewport and poll /photos for row changes.`)

	serveExample = templates.Examples(`
		# Start on the default address
		photo-pipeline serve --manifest-url https://example.com/photos.json

		# Start on a custom address
		photo-pipeline serve --addr :9090 --manifest-glob '*.jpg'`)
)

func NewServeOptions(root *RootOptions) *ServeOptions {
	return &ServeOptions{RootOptions: root}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the photo pipeline HTTP server",
		Long:    serveLong,
		Example: serveExample,
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

	cmd.Flags().StringVarP(&o.Addr, "addr", "a", "", "Address to listen on (default from config)")

	return cmd
}

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *ServeOptions) Validate() error {
	return nil
}

func (o *ServeOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if o.Addr != "" {
		cfg.Server.Addr = o.Addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := o.newLogger(cfg)

	rows := server.NewRowTracker(logger)
	p, err := startPipeline(ctx, cfg, logger, rows)
	if err != nil {
		return err
	}
	defer p.Close()

	// Rows on screen at start load without waiting for a scroll.
	if err := p.coord.Settle(); err != nil {
		return fmt.Errorf("initial settle failed: %w", err)
	}

	srv := server.New(p.coord, p.view, rows, p.registry, logger, server.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JPEGQuality:  cfg.Export.Quality,
	})
	return srv.ListenAndServe(ctx)
}
