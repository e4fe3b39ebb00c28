package cli

import (
	"github.com/spf13/cobra"

	"github.com/shopfeed/backend/internal/config"
	"github.com/shopfeed/backend/internal/database"
)

func NewMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlDB, err := database.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return database.RunMigrations(sqlDB)
		},
	}
}
