package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gideonite22/zensync-meditation-assets/config"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/persistence/postgres"
)

var (
	jsonOut bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "zensyncctl",
	Short: "Operate a ZenSync deployment",
	Long: `zensyncctl reads the same configuration as the server (config.yaml and
ZENSYNC_* environment variables).

Examples:
  zensyncctl migrate up
  zensyncctl token issue --user alice
  zensyncctl achievement verify 42`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

// connect opens the configured database. Only the postgres driver has state to operate on.
func connect(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Storage.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("storage.driver is %q, this command needs postgres", cfg.Storage.Driver)
	}
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = 2
	pgCfg.MinConns = 0
	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}
