package repo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionDurationMinutes is the fixed length of every session.
const SessionDurationMinutes = 60

// SessionDuration is SessionDurationMinutes as a time.Duration.
const SessionDuration = SessionDurationMinutes * time.Minute

// SessionStatus is a state of the session lifecycle.
type SessionStatus string

const (
	StatusPendingApproval  SessionStatus = "pending_approval"
	StatusApproved         SessionStatus = "approved"
	StatusDeclined         SessionStatus = "declined"
	StatusPaymentSubmitted SessionStatus = "payment_submitted"
	StatusConfirmed        SessionStatus = "confirmed"
	StatusInProgress       SessionStatus = "in_progress"
	StatusCompleted        SessionStatus = "completed"
	StatusCancelled        SessionStatus = "cancelled"
)

// SessionStatuses lists every status in lifecycle order.
var SessionStatuses = []SessionStatus{
	StatusPendingApproval,
	StatusApproved,
	StatusDeclined,
	StatusPaymentSubmitted,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// ReleasedStatuses are the statuses whose sessions no longer hold their time.
var ReleasedStatuses = []SessionStatus{StatusDeclined, StatusCancelled}

func (s SessionStatus) Valid() bool {
	for _, v := range SessionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusDeclined || s == StatusCompleted || s == StatusCancelled
}

// HoldsSlot reports whether a session in this status occupies the therapist's calendar.
func (s SessionStatus) HoldsSlot() bool {
	return s != StatusDeclined && s != StatusCancelled
}

// PaymentStatus tracks the money side of a session.
type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentAwaiting  PaymentStatus = "awaiting_payment"
	PaymentSubmitted PaymentStatus = "submitted"
	PaymentVerified  PaymentStatus = "verified"
)

// PaymentProof is the client's evidence of a bank transfer.
type PaymentProof struct {
	ImageKey       string    `json:"image_key,omitempty"`
	TransactionRef string    `json:"transaction_ref,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Session is one therapy appointment.
type Session struct {
	ID               uuid.UUID `json:"id"`
	BookingReference string    `json:"booking_reference"`
	ClientID         uuid.UUID `json:"client_id"`
	TherapistID      uuid.UUID `json:"therapist_id"`

	SessionType     string    `json:"session_type"`
	SessionDate     time.Time `json:"session_date"`
	DurationMinutes int       `json:"duration_minutes"`

	Status        SessionStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	Price               *decimal.Decimal `json:"price,omitempty"`
	PaymentInstructions string           `json:"payment_instructions,omitempty"`
	PaymentProof        *PaymentProof    `json:"payment_proof,omitempty"`
	MeetingLink         string           `json:"meeting_link,omitempty"`

	VideoCallStarted *time.Time `json:"video_call_started,omitempty"`
	VideoCallEnded   *time.Time `json:"video_call_ended,omitempty"`
	// CallDuration is derived on call end, in whole minutes.
	CallDuration *int `json:"call_duration,omitempty"`

	ApprovedBy    *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	DeclineReason string     `json:"decline_reason,omitempty"`
	Notes         string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Price = clonePtr(s.Price)
	c.PaymentProof = clonePtr(s.PaymentProof)
	c.VideoCallStarted = clonePtr(s.VideoCallStarted)
	c.VideoCallEnded = clonePtr(s.VideoCallEnded)
	c.CallDuration = clonePtr(s.CallDuration)
	c.ApprovedBy = clonePtr(s.ApprovedBy)
	c.ApprovedAt = clonePtr(s.ApprovedAt)
	return &c
}

// End is the instant the session's slot ends.
func (s *Session) End() time.Time {
	d := s.DurationMinutes
	if d <= 0 {
		d = SessionDurationMinutes
	}
	return s.SessionDate.Add(time.Duration(d) * time.Minute)
}

// Interval returns the session's [start, end) span.
func (s *Session) Interval() Interval {
	return Interval{Start: s.SessionDate, End: s.End()}
}

// IsParticipant reports whether id is the session's client or therapist.
func (s *Session) IsParticipant(id uuid.UUID) bool {
	return id != uuid.Nil && (id == s.ClientID || id == s.TherapistID)
}
