package admin

import (
	"errors"

	"github.com/cloo-solutions/amm/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending Postgres migrations for the pgvector knowledge store and interaction log, then exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.HasDatabase() {
				return errors.New("AMM_DATABASE_URL is not set")
			}
			return database.Migrate(cmd.Context(), cfg.DatabaseURL, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}
