// Command partsctl is a terminal client for the backoffice service: it signs in,
// looks up stock and customers and enters sales orders.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/partsdesk/internal/logging"
	"github.com/Skotchmaster/partsdesk/pkg/config"
	"github.com/Skotchmaster/partsdesk/pkg/dataclient"
)

type app struct {
	url   string
	token string
}

func (a *app) client() *dataclient.Client {
	return dataclient.New(a.url, a.token)
}

func newRootCmd(cfg config.ClientConfig) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "partsctl",
		Short:         "Parts counter client for the backoffice service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.url, "url", cfg.URL, "backoffice base URL (PARTSDESK_URL)")
	root.PersistentFlags().StringVar(&a.token, "token", cfg.Token, "access token (PARTSDESK_TOKEN)")

	root.AddCommand(
		newLoginCmd(a),
		newStockCmd(a),
		newCustomersCmd(a),
		newOrderCmd(a),
	)
	return root
}

func main() {
	_ = godotenv.Load()

	cfg := config.LoadClient()
	slog.SetDefault(logging.NewWithWriter(cfg.LogLevel, os.Stderr))

	if err := newRootCmd(cfg).Execute(); err != nil {
		if dataclient.IsUnauthorized(err) {
			fmt.Fprintln(os.Stderr, "not signed in: run `partsctl login` and export PARTSDESK_TOKEN")
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
