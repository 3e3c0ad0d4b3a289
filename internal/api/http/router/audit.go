package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/api/http/handler"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
)

func (r *Router) registerAuditRoutes(
	api fiber.Router,
	ah *handler.AuditHandler,
	requirePerm permFunc,
	authRequired fiber.Handler,
	actorCtx fiber.Handler,
) {
	auditGroup := api.Group("/audit", authRequired, actorCtx)

	auditGroup.Get("/", requirePerm(authorize.ResourceAudit, authorize.ActionList), ah.List)
	auditGroup.Get("/verify", requirePerm(authorize.ResourceAudit, authorize.ActionExecute), ah.VerifyStored)
	auditGroup.Post("/verify", requirePerm(authorize.ResourceAudit, authorize.ActionExecute), ah.VerifyEntries)
}
