package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tracker-service/internal/api/http/handlers"
	"github.com/spec-kit/tracker-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Tasks          *handlers.TasksHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Get("/:id/history", cfg.Tickets.GetHistory)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachments)
	tickets.Get("/:id/attachments", cfg.Tickets.ListAttachments)
	tickets.Post("/:id/links", cfg.Tickets.CreateLink)
	tickets.Get("/:id/links", cfg.Tickets.ListLinks)
	tickets.Delete("/:id/links/:linkId", cfg.Tickets.DeleteLink)
	tickets.Post("/:id/watchers", cfg.Tickets.AddWatcher)
	tickets.Get("/:id/watchers", cfg.Tickets.ListWatchers)
	tickets.Delete("/:id/watchers/:userId", cfg.Tickets.RemoveWatcher)
	tickets.Post("/:id/tasks", auth.RequireInternal(), cfg.Tasks.SpawnTask)
	tickets.Get("/:id/tasks", cfg.Tickets.ListSpawnedTasks)

	tasks := api.Group("/tasks")
	tasks.Post("", auth.RequireInternal(), cfg.Tasks.CreateTask)
	tasks.Get("", cfg.Tasks.ListTasks)
	tasks.Get("/:id", cfg.Tasks.GetTask)
	tasks.Patch("/:id", cfg.Tasks.UpdateTask)
	tasks.Delete("/:id", auth.RequireInternal(), cfg.Tasks.DeleteTask)
	tasks.Put("/:id/story-points", cfg.Tasks.SetStoryPoints)
	tasks.Put("/:id/assignees", auth.RequireInternal(), cfg.Tasks.ReplaceAssignments)
	tasks.Get("/:id/assignees", cfg.Tasks.ListAssignments)
	tasks.Post("/:id/close", cfg.Tasks.CloseTask)
}
