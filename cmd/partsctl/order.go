package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/partsdesk/internal/backend"
	"github.com/Skotchmaster/partsdesk/internal/cart"
	"github.com/Skotchmaster/partsdesk/internal/debounce"
	"github.com/Skotchmaster/partsdesk/internal/models"
	"github.com/Skotchmaster/partsdesk/internal/orderentry"
)

const orderHelp = `commands:
  s <text>            search stock (results appear after you stop typing)
  c <text>            search customers
  add <#> [qty]       put stock result # in the cart (qty defaults to 1)
  cust <#>            pick customer result #
  + <id> | - <id>     change the quantity of a cart line by stock id
  rm <id>             remove a cart line
  ls                  show the cart and totals
  submit [type] [date] place the order (type cash|laybye|credit, date YYYY-MM-DD)
  quit`

func newOrderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Enter a sales order interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOrder(cmd.Context(), a.client(), cmd.InOrStdin(), cmd.OutOrStdout(), debounce.SearchDelay)
		},
	}
}

// lockedWriter serialises output from the prompt loop and search callbacks.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

func (l *lockedWriter) with(fn func(w io.Writer)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.w)
}

func runOrder(ctx context.Context, b backend.Backend, in io.Reader, out io.Writer, delay time.Duration) error {
	w := &lockedWriter{w: out}

	s := orderentry.NewSession(ctx, b, orderentry.Config{
		Delay: delay,
		OnStock: func(items []models.StockItem, err error) {
			if err != nil {
				w.printf("stock search failed: %v\n", err)
				return
			}
			if items != nil {
				w.with(func(w io.Writer) { printStock(w, items) })
			}
		},
		OnCustomers: func(rows []models.Customer, err error) {
			if err != nil {
				w.printf("customer search failed: %v\n", err)
				return
			}
			if rows != nil {
				w.with(func(w io.Writer) { printCustomers(w, rows) })
			}
		},
	})
	defer s.Close()

	w.printf("%s\n", orderHelp)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		cmd, arg, _ := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "":
		case "s":
			s.TypeStock(arg)
		case "c":
			s.TypeCustomer(arg)
		case "add":
			addItem(w, s, arg)
		case "cust":
			selectCustomer(w, s, arg)
		case "+", "-", "rm":
			adjust(w, s, cmd, arg)
		case "ls":
			printCart(w, s)
		case "submit":
			if submit(ctx, w, s, arg) {
				return nil
			}
		case "help", "?":
			w.printf("%s\n", orderHelp)
		case "quit", "exit", "q":
			return nil
		default:
			w.printf("unknown command %q, type help\n", cmd)
		}
	}
	return sc.Err()
}

// pick returns the arg-th (1-based) row of a results snapshot. Results may be
// replaced by a search callback at any time, so callers read them once.
func pick[T any](w *lockedWriter, arg string, rows []T) (T, bool) {
	var zero T
	i, err := strconv.Atoi(arg)
	if err != nil || i < 1 || i > len(rows) {
		w.printf("pick a result between 1 and %d\n", len(rows))
		return zero, false
	}
	return rows[i-1], true
}

func selectCustomer(w *lockedWriter, s *orderentry.Session, arg string) {
	c, ok := pick(w, arg, s.CustomerResults())
	if !ok {
		return
	}
	s.SelectCustomer(c)
	w.printf("customer: %s\n", c.Name)
}

func addItem(w *lockedWriter, s *orderentry.Session, arg string) {
	pos, qtyArg, _ := strings.Cut(arg, " ")
	item, ok := pick(w, pos, s.StockResults())
	if !ok {
		return
	}
	qty := 1
	if q := strings.TrimSpace(qtyArg); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil {
			w.printf("quantity must be a number\n")
			return
		}
		qty = v
	}

	switch err := s.SelectStock(item.ID, qty); {
	case errors.Is(err, cart.ErrOutOfStock):
		w.printf("%s is out of stock\n", item.Name)
	case errors.Is(err, cart.ErrInvalidAmount):
		w.printf("quantity must be at least 1\n")
	case err != nil:
		w.printf("add failed: %v\n", err)
	default:
		printCart(w, s)
	}
}

func adjust(w *lockedWriter, s *orderentry.Session, op, arg string) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		w.printf("expected a stock id\n")
		return
	}
	var ok bool
	switch op {
	case "+":
		_, ok = s.Increment(uint(id))
	case "-":
		_, ok = s.Decrement(uint(id))
	case "rm":
		ok = s.Remove(uint(id))
	}
	if !ok {
		w.printf("stock id %d is not in the cart\n", id)
		return
	}
	printCart(w, s)
}

func submit(ctx context.Context, w *lockedWriter, s *orderentry.Session, arg string) bool {
	var req orderentry.SubmitRequest
	fields := strings.Fields(arg)
	if len(fields) > 0 {
		req.SaleType = fields[0]
	}
	if len(fields) > 1 {
		d, err := time.Parse(time.DateOnly, fields[1])
		if err != nil {
			w.printf("date must be YYYY-MM-DD\n")
			return false
		}
		req.OrderDate = d
	}

	r, err := s.Submit(ctx, req)
	var partial *orderentry.PartialOrderError
	switch {
	case errors.Is(err, orderentry.ErrEmptyCart):
		w.printf("cart is empty\n")
		return false
	case errors.As(err, &partial):
		w.printf("order %d was created but some lines failed: %v\n", partial.OrderID, partial.Err)
		return false
	case err != nil:
		w.printf("submit failed: %v\n", err)
		return false
	}
	w.printf("order %d placed: %d lines, total %s\n", r.OrderID, r.Lines, r.Totals.Total.StringFixed(2))
	return true
}

func printCart(w *lockedWriter, s *orderentry.Session) {
	lines := s.Lines()
	t := s.Totals()
	w.with(func(out io.Writer) {
		if c, ok := s.Customer(); ok {
			fmt.Fprintf(out, "customer: %s\n", c.Name)
		}
		if len(lines) == 0 {
			fmt.Fprintln(out, "cart is empty")
			return
		}
		for _, l := range lines {
			fmt.Fprintf(out, "  [%d] %-30s %3d x %10s = %10s\n",
				l.Item.ID, l.Item.Name, l.Quantity, l.Item.SellingPrice.StringFixed(2), l.Amount().StringFixed(2))
		}
		fmt.Fprintf(out, "  subtotal %s  tax %s  total %s\n",
			t.Subtotal.StringFixed(2), t.Tax.StringFixed(2), t.Total.StringFixed(2))
	})
}
