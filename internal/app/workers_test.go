package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/repo/memstore"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/internal/service/session"
	"github.com/Alijeyrad/simorq_booking/pkg/logs"
)

func TestSessionIDFromSubject(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		subject string
		want    uuid.UUID
		ok      bool
	}{
		{"valid", "simorq.payment.received." + id.String(), id, true},
		{"missing id", "simorq.payment.received", uuid.Nil, false},
		{"extra token", "simorq.payment.received." + id.String() + ".x", uuid.Nil, false},
		{"not a uuid", "simorq.payment.received.abc", uuid.Nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sessionIDFromSubject(tt.subject)
			if ok != tt.ok || got != tt.want {
				t.Errorf("sessionIDFromSubject(%q) = %v, %v; want %v, %v", tt.subject, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func newWorkerFixture(t *testing.T) (*memstore.Store, *audit.Chain, session.Service) {
	t.Helper()
	store := memstore.New()
	chain := audit.NewChain(store, logs.Discard())
	t.Cleanup(chain.Close)

	svc := session.New(session.Deps{
		Store:  store,
		Audit:  chain,
		Logger: logs.Discard(),
	}, session.Config{})
	return store, chain, svc
}

func seedSession(t *testing.T, store *memstore.Store, status repo.SessionStatus) *repo.Session {
	t.Helper()
	s := &repo.Session{
		ID:              uuid.New(),
		ClientID:        uuid.New(),
		TherapistID:     uuid.New(),
		SessionType:     "individual",
		SessionDate:     time.Now().Add(48 * time.Hour).Truncate(time.Hour),
		DurationMinutes: repo.SessionDurationMinutes,
		Status:          status,
		PaymentStatus:   repo.PaymentSubmitted,
	}
	if err := store.CreateSessionIfNoOverlap(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHandlePaymentReceived(t *testing.T) {
	tests := []struct {
		name string
		from repo.SessionStatus
		want repo.SessionStatus
	}{
		{"confirms submitted payment", repo.StatusPaymentSubmitted, repo.StatusConfirmed},
		{"ignores redelivery", repo.StatusConfirmed, repo.StatusConfirmed},
		{"ignores unpaid session", repo.StatusApproved, repo.StatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, svc := newWorkerFixture(t)
			s := seedSession(t, store, tt.from)

			msg := &nats.Msg{Subject: "simorq.payment.received." + s.ID.String()}
			handlePaymentReceived(msg, svc, logs.Discard(), time.Second)

			got, err := store.GetSession(context.Background(), s.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != tt.want {
				t.Errorf("status = %q, want %q", got.Status, tt.want)
			}
		})
	}

	t.Run("unknown session is logged only", func(t *testing.T) {
		_, _, svc := newWorkerFixture(t)
		msg := &nats.Msg{Subject: "simorq.payment.received." + uuid.NewString()}
		handlePaymentReceived(msg, svc, logs.Discard(), time.Second)
	})
}

func TestStartAuditVerifier(t *testing.T) {
	_, chain, _ := newWorkerFixture(t)

	if _, err := startAuditVerifier("not a schedule", chain, logs.Discard(), time.Second); err == nil {
		t.Error("invalid schedule accepted")
	}

	c, err := startAuditVerifier("@every 1h", chain, logs.Discard(), time.Second)
	if err != nil {
		t.Fatalf("startAuditVerifier: %v", err)
	}
	<-c.Stop().Done()
}

func TestVerifyAuditChain(t *testing.T) {
	_, chain, _ := newWorkerFixture(t)

	if _, err := chain.Append(context.Background(), &repo.AuditLogEntry{
		ID:         uuid.New(),
		ActionType: "session.created",
		TargetType: audit.TargetSession,
		TargetID:   uuid.New(),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	verifyAuditChain(chain, logs.Discard(), time.Second)
}
