package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/pkg/apperr"
	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": data})
}

func noContent(c fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}

func internalError(c fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

// statusByKind maps error categories to HTTP statuses.
var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:             fiber.StatusBadRequest,
	apperr.KindAuthorization:          fiber.StatusForbidden,
	apperr.KindNotFound:               fiber.StatusNotFound,
	apperr.KindConflict:               fiber.StatusConflict,
	apperr.KindInvalidStateTransition: fiber.StatusConflict,
	apperr.KindIntegrity:              fiber.StatusInternalServerError,
}

// fail writes err as an error envelope. Categorised errors carry their kind
// and metadata; anything else is logged and hidden behind a 500.
func fail(c fiber.Ctx, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindInternal {
		slog.ErrorContext(c.Context(), "request failed",
			"request_id", reqctx.RequestIDFromContext(c.Context()),
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		return internalError(c)
	}

	status, known := statusByKind[ae.Kind]
	if !known {
		status = fiber.StatusInternalServerError
	}

	msg := ae.Message
	if msg == "" {
		msg = string(ae.Kind)
	}
	body := fiber.Map{"error": msg, "kind": ae.Kind}
	if len(ae.Metadata) > 0 {
		body["details"] = ae.Metadata
	}
	return c.Status(status).JSON(body)
}
