package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/procurement-service/internal/api/http/handlers"
	"github.com/spec-kit/procurement-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Operations     *handlers.OperationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleOperator))
	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Get("/tickets/:number", cfg.Tickets.GetTicket)
	protected.Get("/tickets/:number/history", cfg.Tickets.GetHistory)
	protected.Post("/reconcile", cfg.Operations.Reconcile)
	protected.Get("/metrics", cfg.Operations.Metrics)
	protected.Post("/chat/messages", cfg.Operations.InjectMessage)
}
