package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"mesapos/backend/internal/service"
)

func newTablesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List custom table names",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(opts, cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set NUMBER NAME",
		Short: "Name a table; an empty NAME restores the default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTableSet(opts, cmd, args[0], args[1])
		},
	})

	return cmd
}

func runTables(opts *RootOptions, cmd *cobra.Command) error {
	a, out, err := opts.session(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tables, err := a.Service.TableNames(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "list tables", err)
	}
	return out.print(map[string]any{"tables": tables}, func(w io.Writer) {
		if len(tables) == 0 {
			fmt.Fprintln(w, "no custom table names")
			return
		}
		for _, t := range tables {
			fmt.Fprintf(w, "%3d  %s\n", t.Number, t.Name)
		}
	})
}

func runTableSet(opts *RootOptions, cmd *cobra.Command, rawNumber, name string) error {
	number, err := strconv.Atoi(rawNumber)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid table number %q", rawNumber))
	}

	a, out, err := opts.session(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	table, err := a.Service.SetTableName(cmd.Context(), number, name)
	if errors.Is(err, service.ErrInvalidTable) {
		return WrapExitError(ExitCommandError, "set table name", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "set table name", err)
	}
	return out.print(table, func(w io.Writer) {
		fmt.Fprintf(w, "table %d is now %q\n", table.Number, table.Name)
	})
}
