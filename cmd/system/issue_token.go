package system

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
	redispkg "github.com/Alijeyrad/simorq_booking/pkg/redis"
)

func NewIssueTokenCommand() *cobra.Command {
	var (
		service bool
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue-token <user-id>",
		Short: "Mint an access token for a user or service principal",
		Long: `Mint a PASETO access token for the given principal.

User tokens are bound to a fresh session. When redis is enabled the session is
registered there, and deleting its key revokes the token. Service tokens
(--service) are meant for collaborators such as the payment gateway and carry
no session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			principalID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid principal id %q: %w", args[0], err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			mgr, err := pasetotoken.NewPasetoManager(cfg)
			if err != nil {
				return fmt.Errorf("failed to create token manager: %w", err)
			}

			if service {
				token, err := mgr.IssueService(principalID, ttl)
				if err != nil {
					return fmt.Errorf("failed to issue service token: %w", err)
				}
				fmt.Println(token)
				return nil
			}

			sessionID, err := uuid.NewV7()
			if err != nil {
				return err
			}

			if cfg.Redis.Enabled {
				rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
				if err != nil {
					return fmt.Errorf("failed to connect to redis: %w", err)
				}
				defer rdb.Close()

				ctx, cancel := timeoutContext(cfg)
				defer cancel()

				sessionTTL := time.Duration(cfg.Authentication.Paseto.AccessTTLMinutes) * time.Minute
				if err := rdb.Set(ctx, pasetotoken.SessionKey(sessionID), principalID.String(), sessionTTL).Err(); err != nil {
					return fmt.Errorf("failed to register session: %w", err)
				}
			}

			token, err := mgr.IssueAccess(principalID, &sessionID)
			if err != nil {
				return fmt.Errorf("failed to issue access token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().BoolVar(&service, "service", false, "Issue a session-less service token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Service token lifetime (defaults to the access token TTL)")

	return cmd
}
