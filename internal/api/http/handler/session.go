package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/session"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
)

type SessionHandler struct {
	svc session.Service
}

func NewSessionHandler(svc session.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// ---------------------------------------------------------------------------
// Booking and reads
// ---------------------------------------------------------------------------

// POST /sessions
func (h *SessionHandler) Create(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}

	var req session.BookingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	s, err := h.svc.RequestBooking(c.Context(), actor, req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, s)
}

// GET /sessions/:id
func (h *SessionHandler) Get(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid session id")
	}

	s, err := h.svc.Get(c.Context(), actor, id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, s)
}

// GET /sessions?therapist_id=&client_id=&status=a,b&from=&to=&page=&per_page=
func (h *SessionHandler) List(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}

	var req session.ListRequest
	req.Page, req.PerPage = pageParams(c)

	if raw := c.Query("therapist_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid therapist_id")
		}
		req.TherapistID = &id
	}
	if raw := c.Query("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid client_id")
		}
		req.ClientID = &id
	}
	if raw := c.Query("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			req.Statuses = append(req.Statuses, repo.SessionStatus(strings.TrimSpace(st)))
		}
	}

	var valid bool
	if req.From, valid = timeQuery(c, "from"); !valid {
		return badRequest(c, "invalid from, want RFC 3339")
	}
	if req.To, valid = timeQuery(c, "to"); !valid {
		return badRequest(c, "invalid to, want RFC 3339")
	}

	list, err := h.svc.List(c.Context(), actor, req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{
		"sessions": list,
		"page":     req.Page,
		"per_page": req.PerPage,
	})
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

type transitionFunc func(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error)

// transition runs a body-less lifecycle operation on the :id session.
func (h *SessionHandler) transition(c fiber.Ctx, fn transitionFunc) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid session id")
	}

	s, err := fn(c.Context(), actor, id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, s)
}

// POST /sessions/:id/approve
func (h *SessionHandler) Approve(c fiber.Ctx) error {
	var req session.ApproveRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.transition(c, func(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error) {
		return h.svc.Approve(ctx, actor, id, req)
	})
}

// POST /sessions/:id/decline
func (h *SessionHandler) Decline(c fiber.Ctx) error {
	var req session.DeclineRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	return h.transition(c, func(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error) {
		return h.svc.Decline(ctx, actor, id, req)
	})
}

// POST /sessions/:id/payment
func (h *SessionHandler) SubmitPayment(c fiber.Ctx) error {
	var req session.PaymentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.transition(c, func(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error) {
		return h.svc.SubmitPayment(ctx, actor, id, req)
	})
}

// POST /sessions/:id/verify-payment
func (h *SessionHandler) VerifyPayment(c fiber.Ctx) error {
	return h.transition(c, h.svc.VerifyPayment)
}

// POST /sessions/:id/start
func (h *SessionHandler) StartCall(c fiber.Ctx) error {
	return h.transition(c, h.svc.StartCall)
}

// POST /sessions/:id/end
func (h *SessionHandler) EndCall(c fiber.Ctx) error {
	return h.transition(c, h.svc.EndCall)
}

// POST /sessions/:id/cancel
func (h *SessionHandler) Cancel(c fiber.Ctx) error {
	return h.transition(c, h.svc.Cancel)
}

// ---------------------------------------------------------------------------
// Payment proof
// ---------------------------------------------------------------------------

// POST /sessions/:id/payment/upload-url
func (h *SessionHandler) PresignProofUpload(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid session id")
	}

	var body struct {
		ContentType string `json:"content_type"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	up, err := h.svc.PresignProofUpload(c.Context(), actor, id, body.ContentType)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, up)
}

// GET /sessions/:id/payment/proof-url
func (h *SessionHandler) PresignProofDownload(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid session id")
	}

	url, err := h.svc.PresignProofDownload(c.Context(), actor, id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"url": url})
}
