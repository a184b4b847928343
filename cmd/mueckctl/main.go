// Command mueckctl administers a mueck deployment: vendor keys, held events and offline
// signature checks.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mueck/internal/infra"
)

type options struct {
	databaseURL string
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "mueckctl",
		Short:         "Administer the mueck image pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (defaults to DATABASE_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Timeout for database operations")

	root.AddCommand(newVendorKeyCmd(opts), newEventsCmd(opts), newVerifyCmd())
	return root
}

// connect opens a small pool and a marker-checked SQL runner for one command.
func (o *options) connect(ctx context.Context, name string) (*infra.SQLRunner, func(), error) {
	dsn := strings.TrimSpace(o.databaseURL)
	if dsn == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pool: %w", err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", name).Logger()
	return infra.NewSQLRunner(pool, logger), pool.Close, nil
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
