package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/internal/service/session"
	"github.com/Alijeyrad/simorq_booking/pkg/apperr"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
)

// PaymentReceivedSubject is published by the payment gateway once a
// transfer for the session in the last token has cleared.
const PaymentReceivedSubject = "simorq.payment.received.*"

// WorkerModule registers the NATS payment worker and the scheduled audit
// verification.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      *config.Config
	NC       *nats.Conn `optional:"true"`
	Sessions session.Service
	Chain    *audit.Chain
	Logger   *slog.Logger
}

func RegisterWorkers(p WorkerParams) {
	var (
		sub       *nats.Subscription
		scheduler *cron.Cron
	)
	timeout := time.Duration(p.Cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if p.NC != nil {
				s, err := startPaymentWorker(p.NC, p.Sessions, p.Logger, timeout)
				if err != nil {
					return err
				}
				sub = s
			}
			if p.Cfg.Booking.AuditVerifySchedule != "" {
				c, err := startAuditVerifier(p.Cfg.Booking.AuditVerifySchedule, p.Chain, p.Logger, timeout)
				if err != nil {
					return err
				}
				scheduler = c
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if sub != nil {
				_ = sub.Unsubscribe()
			}
			if scheduler != nil {
				select {
				case <-scheduler.Stop().Done():
				case <-ctx.Done():
				}
			}
			// Drain handled by ProvideNatsClient
			return nil
		},
	})
}

// ---------------------------------------------------------------------------
// payment_worker
// ---------------------------------------------------------------------------

func startPaymentWorker(nc *nats.Conn, sessions session.Service, logger *slog.Logger, timeout time.Duration) (*nats.Subscription, error) {
	log := logger.With("worker", "payment")

	sub, err := nc.Subscribe(PaymentReceivedSubject, func(msg *nats.Msg) {
		handlePaymentReceived(msg, sessions, log, timeout)
	})
	if err != nil {
		log.Error("subscribe failed", "subject", PaymentReceivedSubject, "err", err)
		return nil, err
	}

	log.Info("started", "subject", PaymentReceivedSubject)
	return sub, nil
}

// sessionIDFromSubject reads the session id from the last subject token.
func sessionIDFromSubject(subject string) (uuid.UUID, bool) {
	parts := strings.Split(subject, ".")
	if len(parts) != 4 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[3])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func handlePaymentReceived(msg *nats.Msg, sessions session.Service, log *slog.Logger, timeout time.Duration) {
	id, ok := sessionIDFromSubject(msg.Subject)
	if !ok {
		log.Warn("malformed subject", "subject", msg.Subject)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := sessions.VerifyPayment(ctx, authorize.SystemActor(), id)
	switch {
	case err == nil:
		log.Info("payment verified", "session_id", id, "booking_reference", s.BookingReference)
	case errors.Is(err, apperr.ErrInvalidStateTransition):
		// redelivery after the session already moved on
		log.Debug("payment event ignored", "session_id", id, "err", err)
	default:
		log.Warn("verify payment failed", "session_id", id, "err", err)
	}
}

// ---------------------------------------------------------------------------
// audit_verifier
// ---------------------------------------------------------------------------

func startAuditVerifier(schedule string, chain *audit.Chain, logger *slog.Logger, timeout time.Duration) (*cron.Cron, error) {
	log := logger.With("worker", "audit_verifier")

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { verifyAuditChain(chain, log, timeout) }); err != nil {
		log.Error("invalid schedule", "schedule", schedule, "err", err)
		return nil, err
	}
	c.Start()

	log.Info("started", "schedule", schedule)
	return c, nil
}

func verifyAuditChain(chain *audit.Chain, log *slog.Logger, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := chain.VerifyStored(ctx)
	switch {
	case errors.Is(err, apperr.ErrIntegrity):
		log.Error("audit chain broken",
			"kind", apperr.KindOf(err),
			"detail", apperr.MetadataOf(err),
			"entries", len(report.Entries),
		)
	case err != nil:
		log.Error("audit verification failed", "err", err)
	default:
		log.Info("audit chain verified", "entries", len(report.Entries))
	}
}
