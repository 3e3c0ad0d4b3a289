package handler

import (
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
)

type AvailabilityHandler struct {
	svc availability.Service
}

func NewAvailabilityHandler(svc availability.Service) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc}
}

// ---------------------------------------------------------------------------
// Windows
// ---------------------------------------------------------------------------

// GET /therapists/:therapistID/availability
func (h *AvailabilityHandler) ListWindows(c fiber.Ctx) error {
	therapistID, valid := uuidParam(c, "therapistID")
	if !valid {
		return badRequest(c, "invalid therapist id")
	}

	f := availability.ListFilter{Type: repo.WindowType(c.Query("type"))}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid active flag")
		}
		f.ActiveOnly = active
	}
	if raw := c.Query("exclude_expired"); raw != "" {
		exclude, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid exclude_expired flag")
		}
		f.ExcludeExpired = exclude
	}

	grouped, err := h.svc.ListWindows(c.Context(), therapistID, f)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{
		"recurring": grouped.Recurring,
		"one_time":  grouped.OneTime,
		"exception": grouped.Exception,
		"total":     grouped.Total(),
	})
}

// POST /therapists/:therapistID/availability
func (h *AvailabilityHandler) CreateWindow(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}
	therapistID, valid := uuidParam(c, "therapistID")
	if !valid {
		return badRequest(c, "invalid therapist id")
	}

	var req availability.CreateWindowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.TherapistID = therapistID

	w, err := h.svc.CreateWindow(c.Context(), actor, req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, w)
}

// GET /availability/:id
func (h *AvailabilityHandler) GetWindow(c fiber.Ctx) error {
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid window id")
	}

	w, err := h.svc.GetWindow(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, w)
}

// PATCH /availability/:id
func (h *AvailabilityHandler) UpdateWindow(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid window id")
	}

	var patch availability.UpdateWindowRequest
	if err := c.Bind().JSON(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}

	w, err := h.svc.UpdateWindow(c.Context(), actor, id, patch)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, w)
}

// POST /availability/:id/deactivate
func (h *AvailabilityHandler) DeactivateWindow(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid window id")
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	w, err := h.svc.DeactivateWindow(c.Context(), actor, id, body.Reason)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, w)
}

// POST /availability/:id/reactivate
func (h *AvailabilityHandler) ReactivateWindow(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := uuidParam(c, "id")
	if !valid {
		return badRequest(c, "invalid window id")
	}

	w, err := h.svc.ReactivateWindow(c.Context(), actor, id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, w)
}

// ---------------------------------------------------------------------------
// Blocked dates
// ---------------------------------------------------------------------------

// GET /therapists/:therapistID/blocked-dates?from=&to=
func (h *AvailabilityHandler) ListBlockedDates(c fiber.Ctx) error {
	therapistID, valid := uuidParam(c, "therapistID")
	if !valid {
		return badRequest(c, "invalid therapist id")
	}
	from, valid := dateQuery(c, "from")
	if !valid {
		return badRequest(c, "invalid from date")
	}
	to, valid := dateQuery(c, "to")
	if !valid {
		return badRequest(c, "invalid to date")
	}

	dates, err := h.svc.ListBlockedDates(c.Context(), therapistID, from, to)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, dates)
}

// POST /therapists/:therapistID/blocked-dates
func (h *AvailabilityHandler) BlockDate(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}
	therapistID, valid := uuidParam(c, "therapistID")
	if !valid {
		return badRequest(c, "invalid therapist id")
	}

	var body struct {
		Date   civil.Date `json:"date"`
		Reason string     `json:"reason"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	b, err := h.svc.BlockDate(c.Context(), actor, therapistID, body.Date, body.Reason)
	if err != nil {
		return fail(c, err)
	}
	return created(c, b)
}

// DELETE /therapists/:therapistID/blocked-dates/:date
func (h *AvailabilityHandler) UnblockDate(c fiber.Ctx) error {
	actor, found := actorFromCtx(c)
	if !found {
		return unauthorized(c)
	}
	therapistID, valid := uuidParam(c, "therapistID")
	if !valid {
		return badRequest(c, "invalid therapist id")
	}
	date, valid := dateParam(c, "date")
	if !valid {
		return badRequest(c, "invalid date")
	}

	if err := h.svc.UnblockDate(c.Context(), actor, therapistID, date); err != nil {
		return fail(c, err)
	}
	return noContent(c)
}
