package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tendant/simple-photo-pipeline/pkg/client"
)

type StatusOptions struct {
	*RootOptions

	Server  string
	Timeout time.Duration
	Scroll  string

	first int
	count int
}

var (
	statusLong = templates.LongDesc(`
		Show the rows of a running photo pipeline server. With --scroll the
		visible window is moved first, the same way a client scrolling the
		list would.`)

	statusExample = templates.Examples(`
		# Show every row
		photo-pipeline status --server http://localhost:8080

		# Show rows 20 to 29 and start loading them
		photo-pipeline status --scroll 20:10`)
)

func NewStatusOptions(root *RootOptions) *StatusOptions {
	return &StatusOptions{RootOptions: root}
}

func NewStatusCommand(o *StatusOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the rows of a running server",
		Long:    statusLong,
		Example: statusExample,
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

	cmd.Flags().StringVarP(&o.Server, "server", "s", "http://localhost:8080", "Base URL of the photo pipeline server")
	cmd.Flags().DurationVar(&o.Timeout, "timeout", 10*time.Second, "Request timeout")
	cmd.Flags().StringVar(&o.Scroll, "scroll", "", "Move the visible window first, as FIRST:COUNT")

	return cmd
}

func (o *StatusOptions) Complete(cmd *cobra.Command, args []string) error {
	o.Server = strings.TrimRight(o.Server, "/")
	if o.Scroll == "" {
		return nil
	}
	if _, err := fmt.Sscanf(o.Scroll, "%d:%d", &o.first, &o.count); err != nil {
		return fmt.Errorf("invalid --scroll %q, want FIRST:COUNT", o.Scroll)
	}
	return nil
}

func (o *StatusOptions) Validate() error {
	if o.Server == "" {
		return fmt.Errorf("--server is required")
	}
	if o.first < 0 || o.count < 0 {
		return fmt.Errorf("--scroll values must not be negative")
	}
	return nil
}

func (o *StatusOptions) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), o.Timeout)
	defer cancel()

	c := client.New(o.Server)

	if o.Scroll != "" {
		vp, err := c.SetViewport(ctx, o.first, o.count, false)
		if err != nil {
			return fmt.Errorf("failed to move viewport: %w", err)
		}
		fmt.Fprintf(o.Out, "viewport %d+%d, in flight %v\n\n", vp.First, vp.Count, vp.InFlight)
	}

	photos, err := c.Photos(ctx)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}

	w := tabwriter.NewWriter(o.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tSTATE\tBUSY\tREV\tNAME")
	for _, p := range photos {
		state := p.State
		if p.FilterFailed {
			state += " (filter failed)"
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%d\t%s\n", p.Row, state, p.Busy, p.Revision, p.Name)
	}
	return w.Flush()
}
