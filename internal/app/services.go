package app

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
	"github.com/Alijeyrad/simorq_booking/internal/service/conflict"
	"github.com/Alijeyrad/simorq_booking/internal/service/lock"
	"github.com/Alijeyrad/simorq_booking/internal/service/notification"
	"github.com/Alijeyrad/simorq_booking/internal/service/session"
	"github.com/Alijeyrad/simorq_booking/internal/service/slots"
	"github.com/Alijeyrad/simorq_booking/pkg/observability"
	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
	s3pkg "github.com/Alijeyrad/simorq_booking/pkg/s3"
	"github.com/Alijeyrad/simorq_booking/pkg/util/codes"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideDispatcher,
		ProvideConflictDetector,
		ProvideAvailabilityService,
		ProvideSlotService,
		ProvideSessionService,
		ProvidePasetoManager,
	),
)

// defaultLocation resolves booking.default_timezone. Config validation
// already rejected unknown zones, so a failure here falls back to UTC.
func defaultLocation(cfg *config.Config) *time.Location {
	if cfg.Booking.DefaultTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(cfg.Booking.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func ProvideDispatcher(nc *nats.Conn, logger *slog.Logger) notification.Dispatcher {
	if nc == nil {
		return notification.Noop()
	}
	return notification.NewNATS(nc, logger.With("component", "notification"))
}

func ProvideConflictDetector(store repo.Store) conflict.Detector {
	return conflict.New(store)
}

func ProvideAvailabilityService(
	store repo.Store,
	chain *audit.Chain,
	locker lock.Locker,
	logger *slog.Logger,
	cfg *config.Config,
	metrics *observability.BookingMetrics,
) availability.Service {
	return availability.New(store, chain, locker, logger.With("component", "availability"), availability.Config{
		DefaultLocation: defaultLocation(cfg),
		Metrics:         metrics,
	})
}

func ProvideSlotService(
	store repo.Store,
	logger *slog.Logger,
	cfg *config.Config,
	metrics *observability.BookingMetrics,
) slots.Service {
	return slots.New(store, logger.With("component", "slots"), slots.Config{
		DefaultLocation: defaultLocation(cfg),
		MinDuration:     cfg.Booking.MinSlotMinutes,
		MaxDuration:     cfg.Booking.MaxSlotMinutes,
		DropPast:        cfg.Booking.DropPastSlots,
		Metrics:         metrics,
	})
}

type SessionParams struct {
	fx.In

	Store    repo.Store
	Conflict conflict.Detector
	Chain    *audit.Chain
	Notifier notification.Dispatcher
	Locker   lock.Locker
	S3       *s3pkg.Client
	Logger   *slog.Logger
	Cfg      *config.Config
	Metrics  *observability.BookingMetrics
}

func ProvideSessionService(p SessionParams) session.Service {
	deps := session.Deps{
		Store:    p.Store,
		Conflict: p.Conflict,
		Audit:    p.Chain,
		Notifier: p.Notifier,
		Locker:   p.Locker,
		Logger:   p.Logger.With("component", "session"),
	}
	// a nil *Client must not become a non-nil ProofStore
	if p.S3 != nil {
		deps.Proofs = p.S3
	}
	return session.New(deps, session.Config{
		Codes:   codes.FromCentralConfig(p.Cfg.Codes),
		Metrics: p.Metrics,
	})
}

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewPasetoManager(cfg)
}
