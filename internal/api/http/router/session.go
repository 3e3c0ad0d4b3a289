package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/api/http/handler"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
)

func (r *Router) registerSessionRoutes(
	api fiber.Router,
	sh *handler.SessionHandler,
	requirePerm permFunc,
	authRequired fiber.Handler,
	actorCtx fiber.Handler,
) {
	sessions := api.Group("/sessions", authRequired, actorCtx)

	sessions.Post("/", requirePerm(authorize.ResourceSession, authorize.ActionCreate), sh.Create)
	sessions.Get("/", requirePerm(authorize.ResourceSession, authorize.ActionList), sh.List)
	sessions.Get("/:id", requirePerm(authorize.ResourceSession, authorize.ActionRead), sh.Get)

	// Lifecycle
	sessions.Post("/:id/approve", requirePerm(authorize.ResourceSession, authorize.ActionApprove), sh.Approve)
	sessions.Post("/:id/decline", requirePerm(authorize.ResourceSession, authorize.ActionApprove), sh.Decline)
	sessions.Post("/:id/payment", requirePerm(authorize.ResourceSession, authorize.ActionPay), sh.SubmitPayment)
	sessions.Post("/:id/verify-payment", requirePerm(authorize.ResourceSession, authorize.ActionVerify), sh.VerifyPayment)
	sessions.Post("/:id/start", requirePerm(authorize.ResourceSession, authorize.ActionAttend), sh.StartCall)
	sessions.Post("/:id/end", requirePerm(authorize.ResourceSession, authorize.ActionAttend), sh.EndCall)
	sessions.Post("/:id/cancel", requirePerm(authorize.ResourceSession, authorize.ActionCancel), sh.Cancel)

	// Payment proof
	sessions.Post("/:id/payment/upload-url", requirePerm(authorize.ResourcePaymentProof, authorize.ActionCreate), sh.PresignProofUpload)
	sessions.Get("/:id/payment/proof-url", requirePerm(authorize.ResourcePaymentProof, authorize.ActionRead), sh.PresignProofDownload)
}
