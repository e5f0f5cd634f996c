package main

import (
	"fmt"
	"io"
	"os"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type globalOptions struct {
	verbose bool
	jsonOut bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "poolctl",
		Short: "Exercise and inspect boundary-tag pool allocators",
		Long: `poolctl builds pool allocators over fixed arenas, replays allocation
traces against them, and prints the resulting chunk layout.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every pool operation to stderr")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Output in JSON format")

	rootCmd.AddCommand(newReplayCmd(opts))
	rootCmd.AddCommand(newLayoutCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *globalOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// printer formats byte counts with thousands separators
var printer = message.NewPrinter(language.English)

func printf(w io.Writer, format string, args ...any) {
	printer.Fprintf(w, format, args...)
}

// writeJSON runs fill against a fresh top-level object and writes the result to w
func writeJSON(w io.Writer, fill func(obj *jwriter.ObjectState) error) error {
	writer := jwriter.NewWriter()
	obj := writer.Object()
	err := fill(&obj)
	obj.End()
	if err != nil {
		return err
	}
	if err := writer.Error(); err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(writer.Bytes()))
	return err
}
