package router // package router defines how HTTP routes are registered for the admin API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/cinema-seat-server/internal/handler"    // admin and health handlers
	"github.com/iliyamo/cinema-seat-server/internal/middleware" // JWT, role and rate limit middleware
	"github.com/iliyamo/cinema-seat-server/internal/ratelimit"  // token bucket shared with the dispatcher
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check for load balancers and
// monitoring.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAdmin registers the protected admin endpoints under /v1.  Every
// request is rate limited, must carry a bearer token signed with jwtSecret
// and must hold the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string, limiter *ratelimit.Bucket) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleAdmin))
	// The limiter runs after JWTAuth so the token subject can be part of the key.
	g.Use(middleware.NewTokenBucket(limiter))

	g.GET("/grid", a.Grid)
	g.GET("/accounts/:email/reservations", a.Reservations)
	g.GET("/sessions", a.Sessions)
	g.POST("/sync", a.Sync)
}
