package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/repo/memstore"
	"github.com/Alijeyrad/simorq_booking/internal/repo/pgstore"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/internal/service/lock"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	"github.com/Alijeyrad/simorq_booking/pkg/database"
	"github.com/Alijeyrad/simorq_booking/pkg/observability"
	redispkg "github.com/Alijeyrad/simorq_booking/pkg/redis"
	s3pkg "github.com/Alijeyrad/simorq_booking/pkg/s3"
)

const lockPrefix = "simorq:lock:"

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideLogger),
	fx.Provide(ProvideStore),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideLocker),
	fx.Provide(ProvideAuthorization),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideMetrics),
	fx.Provide(ProvideS3Client),
	fx.Provide(ProvideNatsClient),
	fx.Provide(ProvideAuditChain),
)

// ProvideLogger hands the process logger, configured by the command before
// fx starts, to components that take one explicitly.
func ProvideLogger() *slog.Logger {
	return slog.Default()
}

func ProvideStore(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (repo.Store, error) {
	if !cfg.UsesPostgres() {
		logger.Warn("booking store is in memory; data is lost on restart")
		return memstore.New(), nil
	}

	db, err := database.OpenFromCentral(cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Migrations.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.TimeoutSeconds)*time.Second)
		applied, err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			db.Close()
			return nil, err
		}
		if len(applied) > 0 {
			logger.Info("database migrations applied", "versions", applied)
		}
	}

	store := pgstore.New(db)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database connection")
			return store.Close()
		},
	})
	return store, nil
}

// ProvideRedis returns nil when redis is disabled; consumers fall back to
// in-process implementations.
func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideLocker(cfg *config.Config, rdb *redis.Client) lock.Locker {
	if rdb == nil {
		return lock.NewLocal()
	}
	ttl := time.Duration(cfg.Booking.LockTTLSeconds) * time.Second
	return redispkg.NewLocker(rdb, lockPrefix, ttl)
}

func ProvideAuthorization(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (authorize.IAuthorization, error) {
	authCfg := authorize.FromCentralConfig(cfg.Authorization)
	dsn := database.NewDSN(cfg.CasbinDatabase)
	enforcer, cleanup, err := authorize.NewEnforcer(authCfg, dsn)
	if err != nil {
		return nil, err
	}
	baseAuth, err := authorize.NewAuthorization(enforcer, authorize.WithAdminBypass(authCfg.SuperadminBypass))
	if err != nil {
		cleanup(context.Background())
		return nil, err
	}

	auth := baseAuth
	if authCfg.EnableAudit {
		auth = authorize.NewAuditedAuthorization(baseAuth, logger)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("cleaning up Casbin enforcer")
			cleanup(ctx)
			return nil
		},
	})
	return auth, nil
}

func ProvideS3Client(cfg *config.Config) (*s3pkg.Client, error) {
	if !cfg.S3.Enabled {
		return nil, nil
	}
	return s3pkg.New(cfg.S3)
}

// ProvideNatsClient returns nil when NATS is disabled; notifications are
// then dropped and the payment worker is not started.
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	if !cfg.Nats.Enabled {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name(cfg.Observability.ServiceName))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(),
		observability.FromCentralConfig(cfg.Observability, cfg.Server.Environment))
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}

// ProvideMetrics depends on the OTel provider so instruments bind to the
// configured global meter provider.
func ProvideMetrics(_ *observability.Provider) *observability.BookingMetrics {
	return observability.NewBookingMetrics()
}

func ProvideAuditChain(lc fx.Lifecycle, cfg *config.Config, store repo.Store, logger *slog.Logger, metrics *observability.BookingMetrics) *audit.Chain {
	chain := audit.NewChain(store, logger.With("component", "audit"),
		audit.WithQueueSize(cfg.Booking.AuditQueueSize),
		audit.WithMetrics(metrics),
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("flushing audit chain")
			chain.Close()
			return nil
		},
	})
	return chain
}
