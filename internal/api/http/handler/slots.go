package handler

import (
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/slots"
)

type SlotHandler struct {
	svc slots.Service
}

func NewSlotHandler(svc slots.Service) *SlotHandler {
	return &SlotHandler{svc: svc}
}

// GET /therapists/:therapistID/slots?date=YYYY-MM-DD&duration=60&session_type=
func (h *SlotHandler) ListSlots(c fiber.Ctx) error {
	therapistID, valid := uuidParam(c, "therapistID")
	if !valid {
		return badRequest(c, "invalid therapist id")
	}

	date, err := civil.ParseDate(c.Query("date"))
	if err != nil {
		return badRequest(c, "date is required as YYYY-MM-DD")
	}

	duration := repo.SessionDurationMinutes
	if raw := c.Query("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "invalid duration")
		}
	}

	out, err := h.svc.ComputeSlots(c.Context(), slots.Query{
		TherapistID:     therapistID,
		Date:            date,
		DurationMinutes: duration,
		SessionType:     c.Query("session_type"),
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{
		"date":  date,
		"slots": out,
	})
}
