package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/persistence/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest applied migration",
	Long: `Roll back the latest applied migration.

WARNING: rolling back a table drops its data, including the achievement ledger.`,
	RunE: runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runMigrateStatus,
}

func init() {
	migrateDownCmd.Flags().BoolP("force", "f", false, "required to confirm the rollback")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)

	rootCmd.AddCommand(migrateCmd)
}

func withMigrator(cmd *cobra.Command, fn func(m *postgres.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	cmd.SetContext(ctx)
	return fn(postgres.NewMigrator(conn))
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	return withMigrator(cmd, func(m *postgres.Migrator) error {
		n, err := m.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(map[string]int{"applied": n})
		}
		if n == 0 {
			fmt.Println("Schema is up to date")
			return nil
		}
		fmt.Printf("Applied %d migration(s)\n", n)
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	if force, _ := cmd.Flags().GetBool("force"); !force {
		return fmt.Errorf("refusing to roll back without --force")
	}
	return withMigrator(cmd, func(m *postgres.Migrator) error {
		version, err := m.Rollback(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(map[string]int{"rolled_back": version})
		}
		if version == 0 {
			fmt.Println("Nothing to roll back")
			return nil
		}
		fmt.Printf("Rolled back migration %03d\n", version)
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	return withMigrator(cmd, func(m *postgres.Migrator) error {
		migrations, err := m.Status(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut {
			type row struct {
				Version   int        `json:"version"`
				Name      string     `json:"name"`
				AppliedAt *time.Time `json:"applied_at,omitempty"`
			}
			rows := make([]row, 0, len(migrations))
			for _, mg := range migrations {
				r := row{Version: mg.Version, Name: mg.Name}
				if mg.IsApplied {
					at := mg.AppliedAt
					r.AppliedAt = &at
				}
				rows = append(rows, r)
			}
			return printJSON(rows)
		}

		w := newTable()
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
		for _, mg := range migrations {
			applied := "pending"
			if mg.IsApplied {
				applied = mg.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%03d\t%s\t%s\n", mg.Version, mg.Name, applied)
		}
		return w.Flush()
	})
}
