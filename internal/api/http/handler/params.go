package handler

import (
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func actorFromCtx(c fiber.Ctx) (authorize.Actor, bool) {
	a, err := authorize.ActorFromContext(c.Context())
	return a, err == nil
}

func uuidParam(c fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

func dateParam(c fiber.Ctx, name string) (civil.Date, bool) {
	d, err := civil.ParseDate(c.Params(name))
	return d, err == nil
}

// dateQuery parses an optional YYYY-MM-DD query value; a missing value
// yields the zero date.
func dateQuery(c fiber.Ctx, name string) (civil.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return civil.Date{}, true
	}
	d, err := civil.ParseDate(raw)
	return d, err == nil
}

// timeQuery parses an optional RFC 3339 query value.
func timeQuery(c fiber.Ctx, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func pageParams(c fiber.Ctx) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
