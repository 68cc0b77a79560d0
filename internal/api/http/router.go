package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/findesk/findesk/internal/api/http/handlers"
	"github.com/findesk/findesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	AdminTickets   *handlers.AdminTicketsHandler
	Lookups        *handlers.LookupsHandler
	Feed           *handlers.FeedHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Auth.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/feed", cfg.Feed.Poll)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Patch("/:id/description", cfg.Tickets.EditDescription)
	tickets.Post("/:id/reopen", cfg.Tickets.ReopenTicket)
	tickets.Post("/:id/rating", cfg.Tickets.RateTicket)
	tickets.Post("/:id/attachments", cfg.Tickets.UploadAttachment)

	admin := app.Group("/admin/tickets", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/", cfg.Tickets.ListTickets)
	admin.Patch("/:id/status", cfg.AdminTickets.ChangeStatus)
	admin.Patch("/:id/assignee", cfg.AdminTickets.AssignTicket)
	admin.Delete("/:id", cfg.AdminTickets.DeleteTicket)

	lookups := app.Group("/lookups", cfg.AuthMiddleware.Handle)
	lookups.Get("/:kind", cfg.Lookups.List)
	lookups.Post("/:kind", auth.RequireAdmin(), cfg.Lookups.Add)
}
