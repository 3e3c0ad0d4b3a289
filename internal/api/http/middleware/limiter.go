package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/simorq_booking/config"
)

// NewLimiter builds a sliding-window limiter. Counters live in Redis when a
// client is given so the limit holds across instances, else in memory.
func NewLimiter(cfg config.RateLimitConfig, rdb *redis.Client) fiber.Handler {
	limit := cfg.Max
	if limit <= 0 {
		limit = 20
	}
	expiration := time.Duration(cfg.ExpirationSeconds) * time.Second
	if expiration <= 0 {
		expiration = 30 * time.Second
	}

	lc := limiter.Config{
		// sliding window
		Max:               limit,
		Expiration:        expiration,
		LimiterMiddleware: limiter.SlidingWindow{},
	}
	if rdb != nil {
		lc.Storage = fiberredis.NewFromConnection(rdb)
	}
	return limiter.New(lc)
}
