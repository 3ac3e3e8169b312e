// Package cli implements salesctl, a terminal front end over the same
// service the HTTP API uses.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mesapos/backend/internal/app"
	"mesapos/backend/internal/config"
	"mesapos/backend/internal/logger"
)

// ValidFormats are the accepted values of --output.
var ValidFormats = []string{"text", "json", "yaml"}

// Opener builds the application for one command run.
type Opener func(ctx context.Context, opts *RootOptions, logOut io.Writer) (*app.App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Output  string
	Offline bool
	Verbose bool

	open Opener
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{open: openFromEnv})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "salesctl",
		Short: "Record and inspect restaurant sales",
		Long: `salesctl records sales into the local ledger, pushes queued sales to the
central database and reports on them. It reads the same environment as the
server (DATABASE_URL, MONGODB_URI, LOCAL_STORE, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Output) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid output %q: must be one of %v", opts.Output, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "never contact the central database")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(newRecordCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newAnalyticsCommand(opts))
	cmd.AddCommand(newTablesCommand(opts))
	cmd.AddCommand(newSuggestCommand(opts))

	return cmd
}

// session opens the application and returns it with a printer bound to the
// command's output.
func (o *RootOptions) session(cmd *cobra.Command) (*app.App, *printer, error) {
	a, err := o.open(cmd.Context(), o, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "startup failed", err)
	}
	return a, &printer{format: o.Output, w: cmd.OutOrStdout()}, nil
}

func openFromEnv(ctx context.Context, opts *RootOptions, logOut io.Writer) (*app.App, error) {
	cfg := config.Load()

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	log, _, err := logger.New(logger.Options{Level: level, Format: cfg.LogFormat, Output: logOut})
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, log, app.Options{Offline: opts.Offline})
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
