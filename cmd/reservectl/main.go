// Command reservectl inspects and drives pending reservations kept in a local
// SQLite slot, without a browser.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appconfig "github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/config"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/storage/sqlite"
)

type globalFlags struct {
	dbPath   string
	clientID string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "reservectl",
		Short:         "Operate on pending item reservations stored in a local slot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.dbPath, "db", envOr("INTENT_SQLITE_PATH", "reservations.db"), "SQLite file holding the slot")
	root.PersistentFlags().StringVar(&g.clientID, "client", sqlite.LocalClient, "client id whose slot to use")

	root.AddCommand(newBeginCmd(g))
	root.AddCommand(newIntentCmd(g))
	root.AddCommand(newReconcileCmd(g))
	root.AddCommand(newRetryCmd(g))
	root.AddCommand(newSupportCmd(g))
	return root
}

// withStore opens the slot for the duration of fn.
func (g *globalFlags) withStore(ctx context.Context, fn func(intent.Store) error) error {
	db, err := sqlite.Open(ctx, g.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db.Scope(g.clientID))
}

func loadConfig() (appconfig.Config, error) {
	_ = godotenv.Load()
	return appconfig.Load()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
