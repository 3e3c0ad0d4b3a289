package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/api/http/handler"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
)

func (r *Router) registerAvailabilityRoutes(
	api fiber.Router,
	ah *handler.AvailabilityHandler,
	sh *handler.SlotHandler,
	requirePerm permFunc,
	authRequired fiber.Handler,
	actorCtx fiber.Handler,
) {
	therapist := api.Group("/therapists/:therapistID")

	// Public: bookable slots for a therapist (no auth required)
	therapist.Get("/slots", sh.ListSlots)

	therapist.Get("/availability", authRequired, actorCtx, requirePerm(authorize.ResourceAvailability, authorize.ActionList), ah.ListWindows)
	therapist.Post("/availability", authRequired, actorCtx, requirePerm(authorize.ResourceAvailability, authorize.ActionCreate), ah.CreateWindow)

	therapist.Get("/blocked-dates", authRequired, actorCtx, requirePerm(authorize.ResourceBlockedDate, authorize.ActionList), ah.ListBlockedDates)
	therapist.Post("/blocked-dates", authRequired, actorCtx, requirePerm(authorize.ResourceBlockedDate, authorize.ActionCreate), ah.BlockDate)
	therapist.Delete("/blocked-dates/:date", authRequired, actorCtx, requirePerm(authorize.ResourceBlockedDate, authorize.ActionDelete), ah.UnblockDate)

	// Authenticated window routes
	windows := api.Group("/availability", authRequired, actorCtx)

	windows.Get("/:id", requirePerm(authorize.ResourceAvailability, authorize.ActionRead), ah.GetWindow)
	windows.Patch("/:id", requirePerm(authorize.ResourceAvailability, authorize.ActionUpdate), ah.UpdateWindow)
	windows.Post("/:id/deactivate", requirePerm(authorize.ResourceAvailability, authorize.ActionUpdate), ah.DeactivateWindow)
	windows.Post("/:id/reactivate", requirePerm(authorize.ResourceAvailability, authorize.ActionUpdate), ah.ReactivateWindow)
}
