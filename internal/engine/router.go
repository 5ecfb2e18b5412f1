package engine

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api", middleware...)

	api.Get("/tools", h.ListTools)
	api.Post("/tools", h.CreateTool)
	api.Get("/tools/:id", h.GetTool)
	api.Put("/tools/:id", h.UpdateTool)
	api.Delete("/tools/:id", h.DeleteTool)
	api.Post("/tools/:id/run", h.RunTool)

	api.Get("/credits", h.GetCredits)
	api.Get("/usage", h.ListUsage)
	api.Get("/usage/stats", h.UsageStats)
}
