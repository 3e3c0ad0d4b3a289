package session

import "github.com/Alijeyrad/simorq_booking/pkg/apperr"

var (
	ErrSessionNotFound    = apperr.New(apperr.KindNotFound, "session not found")
	ErrNotPermitted       = apperr.New(apperr.KindAuthorization, "not permitted to act on this session")
	ErrInvalidTransition  = apperr.New(apperr.KindInvalidStateTransition, "transition not allowed from the current status")
	ErrConcurrentUpdate   = apperr.New(apperr.KindInvalidStateTransition, "session changed while the transition was applied")
	ErrSlotTaken          = apperr.New(apperr.KindConflict, "requested time overlaps an existing session")
	ErrInPast             = apperr.New(apperr.KindValidation, "session date must be in the future")
	ErrSelfBooking        = apperr.New(apperr.KindValidation, "client and therapist must differ")
	ErrInvalidRate        = apperr.New(apperr.KindValidation, "rate must not be negative")
	ErrProofRequired      = apperr.New(apperr.KindValidation, "payment proof needs an image key or a transaction reference")
	ErrProofKeyMismatch   = apperr.New(apperr.KindValidation, "payment proof key does not belong to this session")
	ErrProofNotUploaded   = apperr.New(apperr.KindValidation, "payment proof object has not been uploaded")
	ErrProofStoreDisabled = apperr.New(apperr.KindValidation, "payment proof uploads are not configured")
	ErrUnsupportedProof   = apperr.New(apperr.KindValidation, "unsupported payment proof content type")
	ErrProofMissing       = apperr.New(apperr.KindNotFound, "session has no payment proof image")
)
