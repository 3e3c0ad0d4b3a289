package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type BookingRequest struct {
	// ClientID defaults to the acting user.
	ClientID    uuid.UUID `json:"client_id"`
	TherapistID uuid.UUID `json:"therapist_id" validate:"required"`
	SessionType string    `json:"session_type" validate:"required,max=50"`
	SessionDate time.Time `json:"session_date" validate:"required"`
	Notes       string    `json:"notes" validate:"max=2000"`
}

type ApproveRequest struct {
	Rate                decimal.Decimal `json:"rate"`
	PaymentInstructions string          `json:"payment_instructions" validate:"max=2000"`
	MeetingLink         string          `json:"meeting_link" validate:"omitempty,url,max=500"`
}

type DeclineRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type PaymentRequest struct {
	// ImageKey is the object key returned by PresignProofUpload.
	ImageKey       string `json:"image_key" validate:"max=300"`
	TransactionRef string `json:"transaction_ref" validate:"max=100"`
}

type ListRequest struct {
	TherapistID *uuid.UUID
	ClientID    *uuid.UUID
	Statuses    []repo.SessionStatus
	From        *time.Time
	To          *time.Time
	Page        int
	PerPage     int
}
