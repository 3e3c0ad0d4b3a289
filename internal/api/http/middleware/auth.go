package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

// AuthRequired validates a Bearer PASETO token. When rdb is set, tokens bound
// to a session are only accepted while the session key exists in Redis.
// On success, stores the claims in the request context.
func AuthRequired(mgr *pasetotoken.Manager, rdb *redis.Client) fiber.Handler {
	return func(c fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" {
			return fiber.ErrUnauthorized
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.ErrUnauthorized
		}

		claims, err := mgr.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			return fiber.ErrUnauthorized
		}

		if !claims.Type.Authenticates() {
			return fiber.ErrUnauthorized
		}

		if rdb != nil && claims.SessionID != nil {
			if err := rdb.Get(c.Context(), pasetotoken.SessionKey(*claims.SessionID)).Err(); err != nil {
				return fiber.ErrUnauthorized
			}
		}

		c.SetContext(reqctx.WithClaims(c.Context(), claims))
		return c.Next()
	}
}
