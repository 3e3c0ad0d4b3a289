package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
)

// RequirePermission checks that the caller's resolved role may perform action
// on resource in the sys domain. Ownership of the concrete record is checked
// by the services.
func RequirePermission(auth authorize.IAuthorization, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		actor, ok := ActorFromFiber(c)
		if !ok {
			return fiber.ErrUnauthorized
		}

		role, ok := authorize.RoleForActor(actor.Role)
		if !ok {
			return fiber.ErrForbidden
		}

		if err := auth.MustEnforce(c.Context(), authorize.GroupSubject(role), authorize.DomainSys, resource, action); err != nil {
			if errors.Is(err, authorize.ErrForbidden) {
				return fiber.ErrForbidden
			}
			return err
		}

		return c.Next()
	}
}
