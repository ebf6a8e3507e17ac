package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"
)

var (
	rootLong = templates.LongDesc(`
		Download a list of photos, apply a sepia filter and keep the work
		focused on the rows currently in view.`)

	rootExamples = templates.Examples(`
		# Walk a remote manifest page by page
		photo-pipeline run --manifest-url https://example.com/photos.json

		# Serve the list over HTTP
		photo-pipeline serve --manifest-glob '**/*.jpg' --manifest-root ./photos`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// RootOptions defines the options shared by every command
type RootOptions struct {
	ConfigPath   string
	ManifestURL  string
	ManifestRoot string
	ManifestGlob string
	LogLevel     string

	iooption.IOStreams
}

// NewRootOptions provides an initialised RootOptions instance.
func NewRootOptions(streams iooption.IOStreams) *RootOptions {
	return &RootOptions{
		IOStreams: streams,
	}
}

// NewRootCommand creates the `photo-pipeline` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewRootOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `photo-pipeline` command and its nested
// children.
func NewRootCommandWithArgs(o *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "photo-pipeline [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Visibility-scheduled photo download and sepia filter pipeline",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}

	printerOpts := printer.WarningPrinterOptions{Color: true}
	printer := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(printer))

	pflags := cmd.PersistentFlags()
	pflags.StringVarP(&o.ConfigPath, "config", "c", "", "Path to a config file (default: ./config/photo-pipeline.yaml)")
	pflags.StringVar(&o.ManifestURL, "manifest-url", "", "URL of a JSON photo manifest")
	pflags.StringVar(&o.ManifestRoot, "manifest-root", "", "Directory searched by --manifest-glob")
	pflags.StringVar(&o.ManifestGlob, "manifest-glob", "", "Doublestar pattern selecting local photos, e.g. '**/*.jpg'")
	pflags.StringVar(&o.LogLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(NewRunCommand(NewRunOptions(o)))
	cmd.AddCommand(NewServeCommand(NewServeOptions(o)))
	cmd.AddCommand(NewExportCommand(NewExportOptions(o)))
	cmd.AddCommand(NewStatusCommand(NewStatusOptions(o)))

	// The global normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
