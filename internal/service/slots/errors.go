package slots

import "github.com/Alijeyrad/simorq_booking/pkg/apperr"

var (
	ErrInvalidDuration  = apperr.New(apperr.KindValidation, "slot duration out of range")
	ErrInvalidDate      = apperr.New(apperr.KindValidation, "invalid date")
	ErrInvalidTherapist = apperr.New(apperr.KindValidation, "therapist id is required")
)
