package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authflow/internal/handler"
)

// RegisterRoutes registers routes that sit outside the API prefix.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
}

// RegisterAuth mounts the authentication API under /api.  throttle wraps
// the public endpoints that accept credentials or trigger mail; bearer
// guards everything that needs a session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, v *handler.VerificationHandler, bearer, throttle echo.MiddlewareFunc) {
	api := e.Group("/api")

	// Public: no session required.
	api.POST("/register", a.Register, throttle)
	api.POST("/login", a.Login, throttle)
	api.POST("/email/verification-notification", v.Resend, throttle)
	// The signed link is its own credential.
	api.GET("/email/verify/:id/:hash", v.VerifyEmail)

	auth := api.Group("", bearer)
	auth.GET("/me", a.Me)
	auth.POST("/refresh", a.Refresh)
	auth.POST("/logout", a.Logout)
	auth.GET("/dashboard", handler.Dashboard)
}
