package system

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	"github.com/Alijeyrad/simorq_booking/pkg/database"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and seed RBAC policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := timeoutContext(cfg)
			defer cancel()

			// booking db
			fmt.Println("Running Migrations For Booking DB.")
			db, err := database.OpenFromCentral(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			applied, err := database.Migrate(ctx, db)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			for _, v := range applied {
				fmt.Printf("  applied %s\n", v)
			}

			// casbin db
			fmt.Println("Running Migrations For Casbin DB.")
			auth, cleanup, err := openAuthorization(cfg)
			if err != nil {
				return err
			}
			defer cleanup(context.Background())

			// Seed Casbin policies
			slog.Info("Seeding Casbin policies...")
			if err := authorize.SeedDefaultPolicies(ctx, auth); err != nil {
				return fmt.Errorf("failed to seed policies: %w", err)
			}

			fmt.Println("Migrations executed successfully.")
			return nil
		},
	}

	return cmd
}
