package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/live-support/internal/api/http/handlers"
	"github.com/spec-kit/live-support/internal/auth"
	"github.com/spec-kit/live-support/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Support        *handlers.SupportHandler
	WS             *handlers.WSHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/code/redeem", cfg.Auth.RedeemCode)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	authProtected.Post("/logout", cfg.Auth.Logout)
	authProtected.Post("/code", cfg.Auth.IssueCode)

	support := app.Group("/support", cfg.AuthMiddleware.Handle)
	support.Post("/requests", auth.RequireRole(domain.RoleUser), cfg.Support.CreateRequest)
	support.Get("/requests/:id", auth.RequireAnyRole(), cfg.Support.GetRequest)
	support.Post("/requests/:id/cancel", auth.RequireRole(domain.RoleUser), cfg.Support.CancelRequest)
	support.Post("/requests/:id/respond", auth.RequireRole(domain.RoleAgent), cfg.Support.Respond)
	support.Post("/requests/:id/complete", auth.RequireAnyRole(), cfg.Support.Complete)
	support.Get("/agents/online", auth.RequireAnyRole(), cfg.Support.OnlineAgents)

	app.Get("/ws", cfg.AuthMiddleware.Handle, cfg.WS.Upgrade, cfg.WS.Serve())
}
