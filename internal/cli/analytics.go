package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mesapos/backend/internal/domain"
)

type analyticsOptions struct {
	*RootOptions
	selectionFlags
}

func newAnalyticsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &analyticsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Summarize sales for a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalytics(opts, cmd)
		},
	}
	opts.register(cmd, domain.PeriodWeek)

	return cmd
}

func runAnalytics(opts *analyticsOptions, cmd *cobra.Command) error {
	a, out, err := opts.session(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sel, err := opts.selection(a.Service.Location())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid period", err)
	}

	resp, err := a.Service.Analytics(cmd.Context(), sel)
	if err != nil {
		return WrapExitError(ExitFailure, "analytics", err)
	}

	return out.print(resp, func(w io.Writer) {
		s := resp.Snapshot
		fmt.Fprintf(w, "period %s (source %s)\n", s.Period, resp.Source)
		fmt.Fprintf(w, "  sales        %s in %d tickets, %d items\n", money(s.TotalSales), s.TotalTickets, s.TotalItems)
		fmt.Fprintf(w, "  avg ticket   %s, %.1f items\n", money(s.AvgTicket), s.AvgItemsPerTicket)
		fmt.Fprintf(w, "  best day     %s %s\n", s.HighestDailySale.Date, money(s.HighestDailySale.Amount))
		fmt.Fprintf(w, "  worst day    %s %s\n", s.LowestDailySale.Date, money(s.LowestDailySale.Amount))
		fmt.Fprintf(w, "  best weekday %s %s\n", s.BestSellingDay.Day, money(s.BestSellingDay.Amount))
		fmt.Fprintf(w, "  growth       sales %+.1f%%, items %+.1f%%\n", s.SalesGrowth, s.ItemsGrowth)
		if len(s.CategoryData) > 0 {
			fmt.Fprintln(w, "categories")
			for _, c := range s.CategoryData {
				fmt.Fprintf(w, "  %-10s %10s %5.1f%%\n", c.Name, money(c.Amount), c.Percentage)
			}
		}
		if len(s.MostPopularItems) > 0 {
			fmt.Fprintln(w, "most popular")
			for _, item := range s.MostPopularItems {
				fmt.Fprintf(w, "  %-24s %4d\n", item.Name, item.Quantity)
			}
		}
	})
}
