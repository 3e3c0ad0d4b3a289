package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/pkg/apperr"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditReader is the read side of the audit chain.
type AuditReader interface {
	List(ctx context.Context, f repo.AuditFilter) ([]*repo.AuditLogEntry, error)
	VerifyStored(ctx context.Context) (*audit.Report, error)
}

type AuditHandler struct {
	chain AuditReader
}

func NewAuditHandler(chain AuditReader) *AuditHandler {
	return &AuditHandler{chain: chain}
}

// GET /audit?target_type=&target_id=&after=&limit=
func (h *AuditHandler) List(c fiber.Ctx) error {
	f := repo.AuditFilter{
		TargetType: c.Query("target_type"),
		Limit:      defaultAuditLimit,
	}
	if raw := c.Query("target_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid target_id")
		}
		f.TargetID = id
	}
	if raw := c.Query("after"); raw != "" {
		after, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || after < 0 {
			return badRequest(c, "invalid after")
		}
		f.AfterSequence = after
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return badRequest(c, "invalid limit")
		}
		f.Limit = min(limit, maxAuditLimit)
	}

	entries, err := h.chain.List(c.Context(), f)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, entries)
}

// POST /audit/verify verifies the entries in the body, in order.
func (h *AuditHandler) VerifyEntries(c fiber.Ctx) error {
	var entries []*repo.AuditLogEntry
	if err := c.Bind().JSON(&entries); err != nil {
		return badRequest(c, "invalid request body")
	}
	return ok(c, audit.Verify(entries))
}

// GET /audit/verify verifies the stored chain from its genesis entry. A
// broken chain is reported in the body, not as a failed request.
func (h *AuditHandler) VerifyStored(c fiber.Ctx) error {
	report, err := h.chain.VerifyStored(c.Context())
	if err != nil && !(errors.Is(err, apperr.ErrIntegrity) && report != nil) {
		return fail(c, err)
	}
	return ok(c, report)
}
