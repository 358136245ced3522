package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rlrepresentacoes/sigem/internal/infrastructure/db/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply PostgreSQL migrations",
	Long: `Apply the embedded goose migrations of the PostgreSQL profile store.

Requires POSTGRES_DSN. Applied migrations are skipped, so the command is safe
to run on every deploy.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, log, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		if cfg.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required")
		}

		db, err := postgres.Open(ctx, postgres.Config{DSN: cfg.Postgres.DSN, Timeout: cfg.Postgres.ConnectTimeout})
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
