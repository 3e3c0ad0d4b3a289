package audit

import "github.com/Alijeyrad/simorq_booking/pkg/apperr"

var (
	ErrChainBroken  = apperr.New(apperr.KindIntegrity, "audit chain integrity check failed")
	ErrChainClosed  = apperr.New(apperr.KindInternal, "audit chain is closed")
	ErrInvalidEntry = apperr.New(apperr.KindValidation, "audit entry is invalid")
)
