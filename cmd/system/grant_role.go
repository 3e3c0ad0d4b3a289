package system

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	"github.com/Alijeyrad/simorq_booking/pkg/database"
)

func NewGrantRoleCommand() *cobra.Command {
	var revoke bool

	cmd := &cobra.Command{
		Use:   "grant-role <user-id> <admin|therapist|client|system>",
		Short: "Grant or revoke a booking role for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			role, ok := authorize.RoleForActor(authorize.ActorRole(args[1]))
			if !ok {
				return fmt.Errorf("unknown role %q", args[1])
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := timeoutContext(cfg)
			defer cancel()

			auth, cleanup, err := openAuthorization(cfg)
			if err != nil {
				return err
			}
			defer cleanup(context.Background())

			if revoke {
				if err := authorize.RemoveRole(ctx, auth, userID.String(), role); err != nil {
					return fmt.Errorf("failed to revoke role: %w", err)
				}
				fmt.Printf("Revoked %s from %s.\n", role, userID)
				return nil
			}

			if err := authorize.AssignRole(ctx, auth, userID.String(), role); err != nil {
				return fmt.Errorf("failed to grant role: %w", err)
			}
			fmt.Printf("Granted %s to %s.\n", role, userID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&revoke, "revoke", false, "Revoke the role instead of granting it")

	return cmd
}

// openAuthorization connects to the casbin database the way the server does.
func openAuthorization(cfg *config.Config) (authorize.IAuthorization, authorize.CleanupFunc, error) {
	authCfg := authorize.FromCentralConfig(cfg.Authorization)
	enforcer, cleanup, err := authorize.NewEnforcer(authCfg, database.NewDSN(cfg.CasbinDatabase))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	auth, err := authorize.NewAuthorization(enforcer)
	if err != nil {
		cleanup(context.Background())
		return nil, nil, fmt.Errorf("failed to create authorization: %w", err)
	}
	return auth, cleanup, nil
}
