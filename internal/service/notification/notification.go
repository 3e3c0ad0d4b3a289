// Package notification fans lifecycle events out to NATS. Delivery is fire
// and forget: a failed publish is logged and never fails the transition
// that caused it.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

const SubjectPrefix = "simorq.session"

type Event string

const (
	EventApproved  Event = "approved"
	EventDeclined  Event = "declined"
	EventConfirmed Event = "confirmed"
)

// Message is the JSON payload published for every event.
type Message struct {
	Event            Event     `json:"event"`
	SessionID        uuid.UUID `json:"session_id"`
	BookingReference string    `json:"booking_reference"`
	ClientID         uuid.UUID `json:"client_id"`
	TherapistID      uuid.UUID `json:"therapist_id"`
	Status           string    `json:"status"`
	SessionDate      time.Time `json:"session_date"`
	DeclineReason    string    `json:"decline_reason,omitempty"`
	MeetingLink      string    `json:"meeting_link,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Subject is simorq.session.<event>.<sessionID>.
func Subject(event Event, sessionID uuid.UUID) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, event, sessionID)
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Dispatcher interface {
	Notify(ctx context.Context, event Event, s *repo.Session)
}

// Publisher is the subset of *nats.Conn the dispatcher uses.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// ---------------------------------------------------------------------------
// NATS
// ---------------------------------------------------------------------------

type natsDispatcher struct {
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewNATS(pub Publisher, logger *slog.Logger) Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &natsDispatcher{pub: pub, logger: logger, now: time.Now}
}

func (d *natsDispatcher) Notify(ctx context.Context, event Event, s *repo.Session) {
	body, err := json.Marshal(Message{
		Event:            event,
		SessionID:        s.ID,
		BookingReference: s.BookingReference,
		ClientID:         s.ClientID,
		TherapistID:      s.TherapistID,
		Status:           string(s.Status),
		SessionDate:      s.SessionDate,
		DeclineReason:    s.DeclineReason,
		MeetingLink:      s.MeetingLink,
		OccurredAt:       d.now().UTC(),
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "notification marshal failed", "event", event, "session_id", s.ID, "error", err)
		return
	}

	msg := nats.NewMsg(Subject(event, s.ID))
	msg.Data = body
	// lets JetStream consumers drop redelivered duplicates
	msg.Header.Set(nats.MsgIdHdr, fmt.Sprintf("%s:%s", event, s.ID))
	if rid := reqctx.RequestIDFromContext(ctx); rid != "" {
		msg.Header.Set("X-Request-ID", rid)
	}

	if err := d.pub.PublishMsg(msg); err != nil {
		d.logger.WarnContext(ctx, "notification publish failed",
			"subject", msg.Subject,
			"error", err,
		)
		return
	}
	d.logger.DebugContext(ctx, "notification published", "subject", msg.Subject)
}

// ---------------------------------------------------------------------------
// Noop
// ---------------------------------------------------------------------------

type noopDispatcher struct{}

// Noop is used when NATS is disabled.
func Noop() Dispatcher { return noopDispatcher{} }

func (noopDispatcher) Notify(context.Context, Event, *repo.Session) {}
