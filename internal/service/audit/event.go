package audit

import (
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
)

// Action types written to the chain.
const (
	ActionAvailabilityCreated     = "availability.created"
	ActionAvailabilityUpdated     = "availability.updated"
	ActionAvailabilityDeactivated = "availability.deactivated"
	ActionAvailabilityReactivated = "availability.reactivated"
	ActionDateBlocked             = "blocked_date.created"
	ActionDateUnblocked           = "blocked_date.removed"

	ActionSessionRequested        = "session.requested"
	ActionSessionApproved         = "session.approved"
	ActionSessionDeclined         = "session.declined"
	ActionSessionPaymentSubmitted = "session.payment_submitted"
	ActionSessionPaymentVerified  = "session.payment_verified"
	ActionSessionCallStarted      = "session.call_started"
	ActionSessionCompleted        = "session.completed"
	ActionSessionCancelled        = "session.cancelled"
)

// Target types.
const (
	TargetAvailabilityWindow = "availability_window"
	TargetBlockedDate        = "blocked_date"
	TargetSession            = "session"
)

// Event describes one mutating operation. Previous and New are marshalled
// to JSON; nil means "no value".
type Event struct {
	Action     string
	Actor      authorize.Actor
	TargetType string
	TargetID   uuid.UUID
	Previous   any
	New        any
}
