package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Prefix         string
	UploadDir      string
	UploadPrefix   string
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
		app.Get("/metrics", cfg.Health.Metrics)
	}
	if cfg.UploadDir != "" && cfg.UploadPrefix != "" {
		app.Static(cfg.UploadPrefix, cfg.UploadDir)
	}

	required := cfg.AuthMiddleware.Handle
	optional := cfg.AuthMiddleware.Optional

	api := app.Group(cfg.Prefix)

	users := api.Group("/users")
	users.Post("/", cfg.Users.Register)
	users.Post("/login", cfg.Users.Login)
	users.Get("/", required, cfg.Users.Me)
	users.Get("/staff/list", required, cfg.Users.ListStaff)
	users.Get("/:id", required, cfg.Users.GetUser)
	users.Delete("/:id", required, cfg.Users.DeleteUser)

	tickets := api.Group("/tickets")
	tickets.Get("/", required, cfg.Tickets.ListTickets)
	tickets.Post("/", optional, cfg.Tickets.CreateTicket)
	tickets.Get("/:id", required, cfg.Tickets.GetTicket)
	tickets.Put("/:id", optional, cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", required, auth.RequireStaff(), cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/comments", cfg.Comments.ListComments)
	tickets.Post("/:id/comments", required, cfg.Comments.AddComment)
}
