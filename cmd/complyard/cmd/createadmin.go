package cmd

import (
	"fmt"

	"github.com/complyard/complyard/internal/config"
	"github.com/complyard/complyard/internal/db"
	"github.com/complyard/complyard/internal/logger"
	"github.com/spf13/cobra"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the initial admin account",
	Long: `Create the initial admin account from the ADMIN_EMAIL, ADMIN_PASSWORD
and ADMIN_NAME environment variables. Runs only against an empty user table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger.Init(cfg.Log.Format, cfg.Log.Level)

		database, err := db.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.Migrate(database); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return db.CreateDefaultAdmin(database)
	},
}

func init() {
	rootCmd.AddCommand(createAdminCmd)
}
