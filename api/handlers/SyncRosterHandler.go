package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/edustems/data-sync/config"
	"github.com/edustems/data-sync/services"
)

// CreateSyncRosterHandler triggers a roster sync under the configured job
// timeout. The sync runs in a goroutine so a dropped client still cancels it
// through the context.
func CreateSyncRosterHandler(svc *services.SyncService, appConfig *config.Config) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), appConfig.JobTimeout)
		defer cancel()

		type result struct {
			total int64
			err   error
		}
		resChan := make(chan result, 1)

		go func() {
			total, err := svc.SyncRoster(ctx)
			resChan <- result{total, err}
		}()

		select {
		case <-ctx.Done():
			log.Printf("Handler: roster sync cancelled (timeout/client disconnect): %v", ctx.Err())
			return c.Status(fiber.StatusRequestTimeout).JSON(fiber.Map{
				"message": "Roster sync timed out or was cancelled by client",
				"details": ctx.Err().Error(),
			})
		case res := <-resChan:
			if res.err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Roster sync failed",
					"details": res.err.Error(),
				})
			}
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"message":       "Roster synced successfully",
				"rows_affected": res.total,
			})
		}
	}
}
