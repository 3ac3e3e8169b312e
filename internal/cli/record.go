package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mesapos/backend/internal/domain"
	"mesapos/backend/internal/service"
)

type recordOptions struct {
	*RootOptions
	Table     int
	TableName string
	Items     []string
	Total     float64
}

func newRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &recordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a sale",
		Long: `Record a sale for a table. Each --item is NAME:PRICE:QUANTITY; the name may
itself contain colons. The total defaults to the sum of the items.

Examples:
  salesctl record --table 3 --item "Taco de pastor:18:4" --item "Refresco:25:2"
  salesctl record --table 7 --name Terraza --item "Consomé grande:60:1" --total 55`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Table, "table", "t", 0, "table number (required)")
	_ = cmd.MarkFlagRequired("table")
	cmd.Flags().StringVar(&opts.TableName, "name", "", "table name for this sale only")
	cmd.Flags().StringArrayVarP(&opts.Items, "item", "i", nil, "line item as NAME:PRICE:QUANTITY (repeatable)")
	cmd.Flags().Float64Var(&opts.Total, "total", 0, "sale total (defaults to the item sum)")

	return cmd
}

func runRecord(opts *recordOptions, cmd *cobra.Command) error {
	items := make([]domain.LineItem, 0, len(opts.Items))
	for _, raw := range opts.Items {
		item, err := parseItem(raw)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --item", err)
		}
		items = append(items, item)
	}

	total := domain.ItemsTotal(items)
	if cmd.Flags().Changed("total") {
		total = opts.Total
	}

	a, out, err := opts.session(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sale, err := a.Service.RecordSale(cmd.Context(), domain.RecordSaleRequest{
		TableNumber: opts.Table,
		TableName:   opts.TableName,
		Items:       items,
		Total:       total,
	})
	if errors.Is(err, service.ErrInvalidSale) {
		return WrapExitError(ExitCommandError, "sale rejected", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "record sale", err)
	}

	return out.print(sale, func(w io.Writer) {
		state := "queued for sync"
		if sale.Synced {
			state = "synced"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n", sale.ID, sale.TableName, money(sale.Total), state)
	})
}

// parseItem splits NAME:PRICE:QUANTITY from the right.
func parseItem(raw string) (domain.LineItem, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return domain.LineItem{}, fmt.Errorf("%q: want NAME:PRICE:QUANTITY", raw)
	}
	n := len(parts)
	name := strings.TrimSpace(strings.Join(parts[:n-2], ":"))
	if name == "" {
		return domain.LineItem{}, fmt.Errorf("%q: empty name", raw)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(parts[n-2]), 64)
	if err != nil || price < 0 {
		return domain.LineItem{}, fmt.Errorf("%q: bad price", raw)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(parts[n-1]))
	if err != nil || qty < 0 {
		return domain.LineItem{}, fmt.Errorf("%q: bad quantity", raw)
	}
	return domain.LineItem{Name: name, Price: price, Quantity: qty}, nil
}
