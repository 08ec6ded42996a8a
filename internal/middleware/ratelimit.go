package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-server/internal/ratelimit"
)

// NewTokenBucket limits admin requests with b.  Keys follow the configured
// strategy over client IP, token subject and route.  Redis failures let the
// request through.
func NewTokenBucket(b *ratelimit.Bucket) echo.MiddlewareFunc {
	if !b.Active() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return func(c echo.Context) error { return next(c) } }
	}
	cfg := b.Config()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(b, cfg.KeyStrategy, c)
			d, err := b.Take(c.Request().Context(), key)
			if err != nil {
				if cfg.Debug {
					c.Logger().Warnf("[ratelimit] %v", err)
				}
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 0 {
					secs = 0
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					c.Logger().Infof("[ratelimit] block key=%s remaining=%d retry=%s", key, d.Remaining, d.RetryAfter)
				}
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}

			if cfg.Debug {
				c.Response().Header().Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

func buildRateKey(b *ratelimit.Bucket, strategy string, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := currentSubject(c)
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(strategy) {
	case "ip":
		return b.Key("ip", ip)
	case "user":
		return b.Key("user", uid)
	case "route":
		return b.Key("route", route)
	case "ip_user":
		return b.Key("ip", ip, "user", uid)
	case "ip_route":
		return b.Key("ip", ip, "route", route)
	case "user_route":
		return b.Key("user", uid, "route", route)
	}
	return b.Key("ip", ip, "user", uid, "route", route)
}

func currentSubject(c echo.Context) string {
	if s, ok := c.Get(SubjectKey).(string); ok && s != "" {
		return s
	}
	return "anon"
}
