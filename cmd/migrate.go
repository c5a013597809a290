package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetflow/config"
	"github.com/otherjamesbrown/meetflow/pkg/db"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	var cfgPath string

	c := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations in order.

Applied migrations are tracked in the schema_migrations table, so the
command is safe to rerun.

Examples:
  meetflow migrate --config ./meetflow.yaml`,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			pool, err := db.Connect(c.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			result, err := db.RunMigrations(c.Context(), pool)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			out := c.OutOrStdout()
			for _, name := range result.Applied {
				fmt.Fprintf(out, "applied  %s\n", name)
			}
			for _, name := range result.Skipped {
				fmt.Fprintf(out, "skipped  %s\n", name)
			}
			fmt.Fprintf(out, "%d applied, %d already present\n", len(result.Applied), len(result.Skipped))
			return nil
		},
	}

	c.Flags().StringVar(&cfgPath, "config", "", "path to the configuration file")
	return c
}
