package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mesapos/backend/internal/domain"
)

const flagDateLayout = "2006-01-02"

// selectionFlags are shared by history and analytics.
type selectionFlags struct {
	Period string
	Start  string
	End    string
}

func (f *selectionFlags) register(cmd *cobra.Command, defaultPeriod domain.Period) {
	cmd.Flags().StringVarP(&f.Period, "period", "p", string(defaultPeriod), "today|week|month|year|all|custom")
	cmd.Flags().StringVar(&f.Start, "start", "", "custom range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.End, "end", "", "custom range end (YYYY-MM-DD)")
}

func (f *selectionFlags) selection(loc *time.Location) (domain.Selection, error) {
	period, err := domain.ParsePeriod(f.Period)
	if err != nil {
		return domain.Selection{}, err
	}
	sel := domain.Selection{Period: period}

	parse := func(name, raw string) (*time.Time, error) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, nil
		}
		at, err := time.ParseInLocation(flagDateLayout, raw, loc)
		if err != nil {
			return nil, fmt.Errorf("--%s must be YYYY-MM-DD", name)
		}
		return &at, nil
	}
	if sel.CustomStart, err = parse("start", f.Start); err != nil {
		return domain.Selection{}, err
	}
	if sel.CustomEnd, err = parse("end", f.End); err != nil {
		return domain.Selection{}, err
	}
	return sel, nil
}

type historyOptions struct {
	*RootOptions
	selectionFlags
	Limit int
}

func newHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &historyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List sales, newest first",
		Long: `List the sales in a period, newest first. The central database is read when
reachable, with local sales it has not received yet added on top.

Examples:
  salesctl history
  salesctl history --period custom --start 2024-05-01 --end 2024-05-15 -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	opts.register(cmd, domain.PeriodToday)
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show at most n sales")

	return cmd
}

func runHistory(opts *historyOptions, cmd *cobra.Command) error {
	a, out, err := opts.session(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	loc := a.Service.Location()
	sel, err := opts.selection(loc)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid period", err)
	}

	resp, err := a.Service.ListSales(cmd.Context(), sel)
	if err != nil {
		return WrapExitError(ExitFailure, "list sales", err)
	}
	if opts.Limit > 0 && len(resp.Sales) > opts.Limit {
		resp.Sales = resp.Sales[:opts.Limit]
	}

	return out.print(resp, func(w io.Writer) {
		if len(resp.Sales) == 0 {
			fmt.Fprintf(w, "no sales (%s, source %s)\n", resp.Period, resp.Source)
			return
		}
		total := 0.0
		for _, sale := range resp.Sales {
			mark := " "
			if !sale.Synced {
				mark = "*"
			}
			fmt.Fprintf(w, "%s %s  %-12s %4d items  %10s\n",
				mark, sale.Time(loc).Format("2006-01-02 15:04"), sale.TableName, sale.ItemCount(), money(sale.Total))
			total += sale.Total
		}
		fmt.Fprintf(w, "%d sales, %s (source %s; * not yet synced)\n", len(resp.Sales), money(total), resp.Source)
	})
}
