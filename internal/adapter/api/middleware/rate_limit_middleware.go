package middleware

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"tidyhome/internal/infrastructure/ratelimit"
	"tidyhome/pkg/errors"
	"tidyhome/pkg/logger"
	"tidyhome/pkg/response"
)

// ActionAPIRequest is the limiter action for plain HTTP requests.
const ActionAPIRequest = "api_request"

// RateLimit limits requests per client IP for one limiter action.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			allowed, wait := limiter.Allow(ip, action)
			if !allowed {
				logger.Warn("RATE LIMIT: blocked %s request from IP %s (retry in %v)", action, ip, wait)
				retryAfter := int(wait.Round(time.Second) / time.Second)
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}

			return next(c)
		}
	}
}
