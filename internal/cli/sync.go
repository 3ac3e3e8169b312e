package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mesapos/backend/internal/service"
)

func newSyncCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push queued sales to the central database",
		Long: `Run one sync pass over the pending queue. Exits 2 when the central
database is unreachable and 1 when some sales could not be pushed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show queue sizes and connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncStatus(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "requeue",
		Short: "Queue abandoned sales again with a fresh attempt budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequeue(opts, cmd)
		},
	})

	return cmd
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	a, out, err := opts.session(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report, syncErr := a.Service.ManualSync(cmd.Context())
	if errors.Is(syncErr, service.ErrOffline) {
		return WrapExitError(ExitCommandError, "sync", syncErr)
	}
	if syncErr != nil && !errors.Is(syncErr, service.ErrSyncIncomplete) {
		return WrapExitError(ExitFailure, "sync", syncErr)
	}

	if err := out.print(report, func(w io.Writer) {
		fmt.Fprintf(w, "attempted %d, synced %d, failed %d, abandoned %d, orphans %d, remaining %d\n",
			report.Attempted, report.Synced, report.Failed, report.Abandoned, report.Orphans, report.Remaining)
	}); err != nil {
		return err
	}
	if syncErr != nil {
		return WrapExitError(ExitFailure, "sync", syncErr)
	}
	return nil
}

func runSyncStatus(opts *RootOptions, cmd *cobra.Command) error {
	a, out, err := opts.session(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.Service.SyncStatus(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "sync status", err)
	}
	return out.print(status, func(w io.Writer) {
		conn := "offline"
		if status.Online {
			conn = "online"
		}
		fmt.Fprintf(w, "%s: %d pending, %d abandoned after %d attempts, %d sales stored\n", conn, status.Pending, status.Abandoned, status.MaxAttempts, status.Total)
	})
}

func runRequeue(opts *RootOptions, cmd *cobra.Command) error {
	a, out, err := opts.session(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Service.RequeueAbandoned(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "requeue", err)
	}
	return out.print(map[string]int{"requeued": n}, func(w io.Writer) {
		fmt.Fprintf(w, "requeued %d sales\n", n)
	})
}
