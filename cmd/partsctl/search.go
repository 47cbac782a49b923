package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/orderentry"
	"github.com/Skotchmaster/partsdesk/internal/query"
	"github.com/Skotchmaster/partsdesk/internal/querylang"
)

func newStockCmd(a *app) *cobra.Command {
	var limit int

	stock := &cobra.Command{Use: "stock", Short: "Stock lookups"}
	search := &cobra.Command{
		Use:   "search <text>",
		Short: "Find stock by name, OEM number, engine number, manufacturer or VIN",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := query.New[models.StockItem](a.client(), query.Options{
				Table:  orderentry.StockTable,
				Select: orderentry.StockSelect,
				To:     max(limit, 1) - 1,
			})
			items, err := q.Search(cmd.Context(), querylang.SearchAny(strings.Join(args, " "), orderentry.StockColumns...))
			if err != nil {
				return err
			}
			printStock(cmd.OutOrStdout(), items)
			return nil
		},
	}
	search.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	stock.AddCommand(search)
	return stock
}

func newCustomersCmd(a *app) *cobra.Command {
	var limit int

	customers := &cobra.Command{Use: "customers", Short: "Customer lookups"}
	search := &cobra.Command{
		Use:   "search <text>",
		Short: "Find customers by name or company",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := query.New[models.Customer](a.client(), query.Options{
				Table: orderentry.CustomersTable,
				To:    max(limit, 1) - 1,
			})
			rows, err := q.Search(cmd.Context(), querylang.SearchAny(strings.Join(args, " "), orderentry.CustomerColumns...))
			if err != nil {
				return err
			}
			printCustomers(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	search.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	customers.AddCommand(search)
	return customers
}

func printStock(w io.Writer, items []models.StockItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no stock found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tOEM\tNAME\tMANUFACTURER\tPRICE\tON HAND")
	for i, it := range items {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%d\n",
			i+1, it.ID, it.OEMNumber, it.Name, it.Manufacturer, it.SellingPrice.StringFixed(2), it.QuantityOnHand)
	}
	_ = tw.Flush()
}

func printCustomers(w io.Writer, rows []models.Customer) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no customers found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tCOMPANY")
	for i, c := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", i+1, c.ID, c.Name, c.CompanyName)
	}
	_ = tw.Flush()
}
