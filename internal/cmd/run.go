package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tendant/simple-photo-pipeline/internal/coordinator"
	"github.com/tendant/simple-photo-pipeline/pkg/photo"
)

type RunOptions struct {
	*RootOptions

	PageSize     int
	PollInterval time.Duration
	Quiet        bool
}

var (
	runLong = templates.LongDesc(`
		Scroll through the photo list one page at a time. Each page is
		settled and left only once all of its rows are downloaded and
		filtered or have failed. Row redraws are printed as they happen.`)

	runExample = templates.Examples(`
		# Walk a manifest with pages of ten rows
		photo-pipeline run --manifest-url https://example.com/photos.json --page-size 10`)
)

func NewRunOptions(root *RootOptions) *RunOptions {
	return &RunOptions{RootOptions: root}
}

func NewRunCommand(o *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "run",
		DisableFlagsInUseLine: true,
		Short:                 "Process the photo list headlessly, page by page",
		Long:                  runLong,
		Example:               runExample,
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

	cmd.Flags().IntVarP(&o.PageSize, "page-size", "p", 0, "Rows visible at once (default from config)")
	cmd.Flags().DurationVar(&o.PollInterval, "poll-interval", 50*time.Millisecond, "How often a page is checked for completion")
	cmd.Flags().BoolVarP(&o.Quiet, "quiet", "q", false, "Only print the final summary")

	return cmd
}

func (o *RunOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *RunOptions) Validate() error {
	if o.PageSize < 0 {
		return fmt.Errorf("page-size must not be negative")
	}
	return nil
}

func (o *RunOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if o.PageSize > 0 {
		cfg.Viewport.PageSize = o.PageSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := o.newLogger(cfg)

	var presenter coordinator.Presenter
	if !o.Quiet {
		presenter = linePresenter{out: o.Out}
	}

	p, err := startPipeline(ctx, cfg, logger, presenter)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.coord.ScrollThrough(ctx, p.view, o.PollInterval, nil); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}

	return printSummary(o.Out, p.coord)
}

// linePresenter prints one line per row redraw. It runs on the main loop, so
// writes never interleave.
type linePresenter struct {
	out io.Writer
}

func (l linePresenter) RowChanged(row int, r photo.Render) {
	status := "done"
	switch {
	case r.Failed:
		status = "failed"
	case r.Busy:
		status = "working"
	}
	fmt.Fprintf(l.out, "row %4d  %-8s %s\n", row, status, r.Title)
}

func printSummary(out io.Writer, coord *coordinator.Coordinator) error {
	counts := make(map[string]int)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tSTATE\tNAME")
	for row := range coord.Len() {
		snap, err := coord.Snapshot(row)
		if err != nil {
			return err
		}
		state := snap.State.String()
		if snap.FilterFailed {
			state += " (filter failed)"
		}
		counts[snap.State.String()]++
		fmt.Fprintf(w, "%d\t%s\t%s\n", row, state, snap.Name)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d photos: %d filtered, %d downloaded, %d failed\n",
		coord.Len(),
		counts[photo.StateFiltered.String()],
		counts[photo.StateDownloaded.String()],
		counts[photo.StateFailed.String()],
	)
	return nil
}
