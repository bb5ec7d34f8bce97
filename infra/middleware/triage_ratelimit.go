package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"complaint_triage/pkg/apperr"
)

// Limiter is satisfied by ratelimit.SlidingWindowLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// RateLimit throttles requests per client IP under scope.
func RateLimit(l Limiter, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, wait := l.Allow(c.UserContext(), scope+":"+c.IP())
		if allowed {
			return c.Next()
		}

		retryAfter := int(math.Ceil(wait.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		return apperr.RateLimited(retryAfter)
	}
}
