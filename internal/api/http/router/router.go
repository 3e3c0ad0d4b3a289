package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/api/http/handler"
	"github.com/Alijeyrad/simorq_booking/internal/api/http/middleware"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
	"github.com/Alijeyrad/simorq_booking/internal/service/session"
	"github.com/Alijeyrad/simorq_booking/internal/service/slots"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
)

// HealthPath reports liveness together with casbin policy health.
const HealthPath = "/health"

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg             *config.Config
	Redis           *redis.Client `optional:"true"`
	Auth            authorize.IAuthorization
	AvailabilitySvc availability.Service
	SlotSvc         slots.Service
	SessionSvc      session.Service
	Chain           *audit.Chain
	PasetoMgr       *pasetotoken.Manager
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

// permFunc builds a route guard for one resource/action pair.
type permFunc func(authorize.Resource, authorize.Action) fiber.Handler

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Initialize Middlewares
	authRequired := middleware.AuthRequired(r.p.PasetoMgr, r.p.Redis)
	actorCtx := middleware.ActorContext(r.p.Auth)

	// Permission helper
	requirePerm := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequirePermission(r.p.Auth, res, act)
	}

	// 3. Initialize Handlers
	availabilityH := handler.NewAvailabilityHandler(r.p.AvailabilitySvc)
	slotH := handler.NewSlotHandler(r.p.SlotSvc)
	sessionH := handler.NewSessionHandler(r.p.SessionSvc)
	auditH := handler.NewAuditHandler(r.p.Chain)

	api := app.Group("/api/v1")

	// 4. Delegate to sub-files
	r.registerAvailabilityRoutes(api, availabilityH, slotH, requirePerm, authRequired, actorCtx)
	r.registerSessionRoutes(api, sessionH, requirePerm, authRequired, actorCtx)
	r.registerAuditRoutes(api, auditH, requirePerm, authRequired, actorCtx)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	policyHealthy := func(c fiber.Ctx) bool { return authorize.IsPolicyHealthy() }

	app.Get(HealthPath, healthcheck.New(healthcheck.Config{Probe: policyHealthy}))
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{Probe: policyHealthy}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
