package session

import (
	"slices"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/internal/service/notification"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
)

// Event names a lifecycle transition.
type Event string

const (
	EventApprove       Event = "approve"
	EventDecline       Event = "decline"
	EventSubmitPayment Event = "submit_payment"
	EventVerifyPayment Event = "verify_payment"
	EventStartCall     Event = "start_call"
	EventEndCall       Event = "end_call"
	EventCancel        Event = "cancel"
)

// Events lists every transition in table order.
var Events = []Event{
	EventApprove, EventDecline, EventSubmitPayment, EventVerifyPayment,
	EventStartCall, EventEndCall, EventCancel,
}

type rule struct {
	// from is nil for transitions legal from any non-terminal status
	from    []repo.SessionStatus
	to      repo.SessionStatus
	allowed func(a authorize.Actor, s *repo.Session) bool
	action  string
	notify  notification.Event
}

func isClient(a authorize.Actor, s *repo.Session) bool    { return a.Is(s.ClientID) }
func isTherapist(a authorize.Actor, s *repo.Session) bool { return a.Is(s.TherapistID) }

func isParticipant(a authorize.Actor, s *repo.Session) bool {
	return isClient(a, s) || isTherapist(a, s)
}

var transitions = map[Event]rule{
	EventApprove: {
		from:    []repo.SessionStatus{repo.StatusPendingApproval},
		to:      repo.StatusApproved,
		allowed: isTherapist,
		action:  audit.ActionSessionApproved,
		notify:  notification.EventApproved,
	},
	EventDecline: {
		from:    []repo.SessionStatus{repo.StatusPendingApproval},
		to:      repo.StatusDeclined,
		allowed: isTherapist,
		action:  audit.ActionSessionDeclined,
		notify:  notification.EventDeclined,
	},
	EventSubmitPayment: {
		from:    []repo.SessionStatus{repo.StatusApproved},
		to:      repo.StatusPaymentSubmitted,
		allowed: isClient,
		action:  audit.ActionSessionPaymentSubmitted,
	},
	EventVerifyPayment: {
		from: []repo.SessionStatus{repo.StatusPaymentSubmitted},
		to:   repo.StatusConfirmed,
		allowed: func(a authorize.Actor, s *repo.Session) bool {
			return isTherapist(a, s) || a.IsAdmin() || a.IsSystem()
		},
		action: audit.ActionSessionPaymentVerified,
		notify: notification.EventConfirmed,
	},
	EventStartCall: {
		from:    []repo.SessionStatus{repo.StatusApproved, repo.StatusConfirmed},
		to:      repo.StatusInProgress,
		allowed: isParticipant,
		action:  audit.ActionSessionCallStarted,
	},
	EventEndCall: {
		from:    []repo.SessionStatus{repo.StatusInProgress},
		to:      repo.StatusCompleted,
		allowed: isParticipant,
		action:  audit.ActionSessionCompleted,
	},
	EventCancel: {
		to: repo.StatusCancelled,
		allowed: func(a authorize.Actor, s *repo.Session) bool {
			return isParticipant(a, s) || a.IsAdmin()
		},
		action: audit.ActionSessionCancelled,
	},
}

func (r rule) legalFrom(status repo.SessionStatus) bool {
	if r.from == nil {
		return !status.Terminal()
	}
	return slices.Contains(r.from, status)
}

// CanTransition reports whether ev is legal from status, ignoring who asks.
func CanTransition(status repo.SessionStatus, ev Event) bool {
	r, ok := transitions[ev]
	return ok && r.legalFrom(status)
}

// applyTransition checks that actor may fire ev and that ev is legal from
// the session's status, in that order, and returns a copy of s moved to the
// target status. s itself is never modified.
func applyTransition(s *repo.Session, ev Event, actor authorize.Actor) (*repo.Session, rule, error) {
	r, ok := transitions[ev]
	if !ok {
		return nil, rule{}, ErrInvalidTransition.With("event", string(ev))
	}
	if !r.allowed(actor, s) {
		return nil, rule{}, ErrNotPermitted
	}
	if !r.legalFrom(s.Status) {
		return nil, rule{}, ErrInvalidTransition.
			With("event", string(ev)).
			With("from", string(s.Status))
	}

	next := s.Clone()
	next.Status = r.to
	return next, r, nil
}
