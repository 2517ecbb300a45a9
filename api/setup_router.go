package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/edustems/data-sync/api/handlers"
	"github.com/edustems/data-sync/config"
	"github.com/edustems/data-sync/services"
)

func SetupRouter(svc *services.SyncService, appConfig *config.Config) *fiber.App {

	r := fiber.New()
	api := r.Group("/api/v1")

	api.Get("/ping", handlers.HandlePing)
	api.Post("/sync/roster", handlers.CreateSyncRosterHandler(svc, appConfig))
	api.Post("/sync/assessments", handlers.CreateSyncAssessmentsHandler(svc, appConfig))

	return r
}
