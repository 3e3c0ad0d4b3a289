package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
)

const LocalsActor = "actor"

// ActorContext resolves the authenticated user's booking role from their
// sys-domain grouping policies and stores the authorize.Actor in Locals and
// in the request context. Must run after AuthRequired.
func ActorContext(auth authorize.IAuthorization) fiber.Handler {
	return func(c fiber.Ctx) error {
		userID, err := authorize.UserIDFromContext(c.Context())
		if err != nil {
			return fiber.ErrUnauthorized
		}

		actor, err := authorize.ResolveActor(c.Context(), auth, userID)
		if err != nil {
			slog.WarnContext(c.Context(), "resolve actor failed", "user_id", userID, "error", err)
			return fiber.ErrUnauthorized
		}

		c.Locals(LocalsActor, actor)
		c.SetContext(authorize.WithActor(c.Context(), actor))
		return c.Next()
	}
}

// ActorFromFiber retrieves the actor stored by ActorContext.
func ActorFromFiber(c fiber.Ctx) (authorize.Actor, bool) {
	a, ok := c.Locals(LocalsActor).(authorize.Actor)
	return a, ok
}
