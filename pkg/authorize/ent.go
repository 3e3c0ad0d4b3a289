package authorize

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	psqlwatcher "github.com/IguteChung/casbin-psql-watcher"
	casbin "github.com/casbin/casbin/v2"
	entadapter "github.com/casbin/ent-adapter"
)

const policyChannel = "simorq_booking_policy_update"

// policyLoadHealthy is false after a watcher-triggered reload failed.
var policyLoadHealthy atomic.Bool

func init() {
	policyLoadHealthy.Store(true)
}

// IsPolicyHealthy returns false if the last policy reload attempt failed.
func IsPolicyHealthy() bool {
	return policyLoadHealthy.Load()
}

// CleanupFunc is a function that cleans up resources.
type CleanupFunc func(ctx context.Context)

// NewEnforcer creates a Casbin DistributedEnforcer persisted through the ent
// adapter. When PolicySyncEnabled is set, a Postgres watcher reloads policy on
// every change made by another instance.
func NewEnforcer(cfg Config, dsn string) (*casbin.DistributedEnforcer, CleanupFunc, error) {
	a, err := entadapter.NewAdapter("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin adapter: %w", err)
	}

	e, err := casbin.NewDistributedEnforcer(cfg.CasbinModelPath, a)
	if err != nil {
		return nil, nil, fmt.Errorf("casbin enforcer: %w", err)
	}

	e.EnableAutoSave(true)
	e.EnableEnforce(true)

	var w *psqlwatcher.Watcher
	if cfg.PolicySyncEnabled {
		w, err = psqlwatcher.NewWatcherWithConnString(context.Background(), dsn, psqlwatcher.Option{
			Channel: policyChannel,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("casbin watcher: %w", err)
		}

		err = w.SetUpdateCallback(func(msg string) {
			slog.Debug("casbin policy update received", "message", msg)
			err := e.LoadPolicy()
			if err != nil {
				slog.Error("failed to reload policy after watcher notification", "error", err)
			}
			if cfg.HealthCheckEnabled {
				policyLoadHealthy.Store(err == nil)
			}
		})
		if err != nil {
			return nil, nil, err
		}

		if err := e.SetWatcher(w); err != nil {
			return nil, nil, err
		}
	}

	cleanup := func(ctx context.Context) {
		if w != nil {
			slog.Info("closing casbin policy watcher")
			w.Close()
		}
		e.StopAutoLoadPolicy()
		slog.Info("casbin enforcer cleanup completed")
	}

	return e, cleanup, nil
}
