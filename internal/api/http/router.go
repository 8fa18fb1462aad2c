package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-relay/internal/api/http/handlers"
	"github.com/spec-kit/ticket-relay/internal/auth"
	"github.com/spec-kit/ticket-relay/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Topics         *handlers.TopicsHandler
	Users          *handlers.UsersHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireResponder())

	admin.Get("/tickets", cfg.Tickets.ListTickets)
	admin.Get("/tickets/stats", cfg.Tickets.Stats)
	admin.Get("/tickets/:id", cfg.Tickets.GetTicket)
	admin.Post("/tickets/:id/take", cfg.Tickets.TakeTicket)
	admin.Post("/tickets/:id/close", cfg.Tickets.CloseTicket)

	admin.Get("/topics", cfg.Topics.ListTopics)
	admin.Post("/topics", cfg.Topics.CreateTopic)
	admin.Delete("/topics/:id", cfg.Topics.DeleteTopic)
	admin.Put("/topics/:id/chat", cfg.Topics.BindChat)
	admin.Get("/topics/:id/responders", cfg.Topics.ListResponders)
	admin.Post("/topics/:id/responders/:userID", cfg.Topics.AddResponder)
	admin.Delete("/topics/:id/responders/:userID", cfg.Topics.RemoveResponder)

	admin.Get("/chats", cfg.Topics.ListChats)

	admin.Get("/users", cfg.Users.ListUsers)
	admin.Post("/users", cfg.Users.PreRegister)
	admin.Patch("/users/:id", cfg.Users.UpdateUser)
}
