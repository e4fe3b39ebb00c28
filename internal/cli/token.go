package cli

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shopfeed/backend/internal/auth"
	"github.com/shopfeed/backend/internal/config"
	"github.com/shopfeed/backend/internal/database"
	"github.com/shopfeed/backend/internal/db"
)

// NewTokenCommand prints a signed token for an existing user, for local
// testing of the socket endpoints.
func NewTokenCommand(cfg *config.Config) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlDB, err := database.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			queries := db.New(sqlDB)
			if _, err := queries.GetUserByID(cmd.Context(), userID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("user %d does not exist", userID)
				}
				return err
			}

			token, err := auth.NewAuthenticator(cfg.JWTSecret, cfg.TokenDuration, queries).GenerateToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id to sign for")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
