package server

import (
	"prelabel/internal/core/job"
	"prelabel/internal/core/prelabel"
	"prelabel/internal/health"
	"prelabel/internal/platform/redis"

	"github.com/gofiber/fiber/v2"
)

type Dependencies struct {
	Jobs  *job.Service
	Redis *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(map[string]health.Check{"redis": d.Redis.HealthCheck})
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1/prelabel")

	h := prelabel.NewHandler(d.Jobs)
	api.Post("/jobs", h.HandleCreateJob)
	api.Get("/jobs/:jobId", h.HandleGetJob)
	api.Get("/jobs/:jobId/logs", h.HandleGetLogs)
	api.Post("/jobs/:jobId/cancel", h.HandleCancelJob)

	return healthHandler
}
