package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hoangnph/stock-tracking-data/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Create or update the database schema.

All statements are idempotent (CREATE TABLE IF NOT EXISTS), so the
command is safe to re-run. Sync commands also apply the schema on
startup; this command exists for provisioning a database ahead of time.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	mysqlClient, err := database.NewMySQLClient(&cfg.MySQL, log)
	if err != nil {
		return fmt.Errorf("failed to create MySQL client: %w", err)
	}
	defer mysqlClient.Close()

	if err := mysqlClient.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("Schema migration complete")
	return nil
}
