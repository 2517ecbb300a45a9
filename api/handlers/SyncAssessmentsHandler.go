package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/edustems/data-sync/api/requests"
	"github.com/edustems/data-sync/config"
	"github.com/edustems/data-sync/services"
)

// CreateSyncAssessmentsHandler triggers an assessment run. mode=backfill
// replays the configured history; the default update mode syncs the rolling
// window for the current academic year.
func CreateSyncAssessmentsHandler(svc *services.SyncService, appConfig *config.Config) fiber.Handler {
	return func(c fiber.Ctx) error {
		params := new(requests.SyncAssessmentsRequest)
		if err := c.Bind().Query(params); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid query params",
				"details": err.Error(),
			})
		}

		switch params.Category {
		case "", services.CategoryStandardized, services.CategoryNonStandardized:
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Unknown category",
				"details": params.Category,
			})
		}

		ctx, cancel := context.WithTimeout(c.Context(), appConfig.JobTimeout)
		defer cancel()

		type result struct {
			total int64
			err   error
		}
		resChan := make(chan result, 1)

		go func() {
			total, err := runAssessmentSync(ctx, svc, appConfig, params)
			resChan <- result{total, err}
		}()

		select {
		case <-ctx.Done():
			log.Printf("Handler: assessment sync cancelled (timeout/client disconnect): %v", ctx.Err())
			return c.Status(fiber.StatusRequestTimeout).JSON(fiber.Map{
				"message": "Assessment sync timed out or was cancelled by client",
				"details": ctx.Err().Error(),
			})
		case res := <-resChan:
			if res.err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message":       "Assessment sync failed",
					"details":       res.err.Error(),
					"rows_affected": res.total,
				})
			}
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"message":       "Assessments synced successfully",
				"rows_affected": res.total,
			})
		}
	}
}

func runAssessmentSync(ctx context.Context, svc *services.SyncService, cfg *config.Config, params *requests.SyncAssessmentsRequest) (int64, error) {
	if params.Mode != "backfill" {
		if params.Category == "" {
			return svc.UpdateAssessments(ctx)
		}
		types := cfg.NonStandardizedTypes
		if params.Category == services.CategoryStandardized {
			types = cfg.StandardizedTypes
		}
		return svc.SyncAssessments(ctx, services.AssessmentSyncOptions{
			Category:   params.Category,
			Types:      types,
			Schools:    cfg.UpdateSchools,
			WindowDays: cfg.UpdateWindowDays,
		})
	}

	startYear := params.StartYear
	if startYear == 0 {
		startYear = cfg.BackfillStartYear
	}
	if params.Category == "" {
		return svc.BackfillAssessments(ctx)
	}
	return svc.SyncAssessments(ctx, services.AssessmentSyncOptions{
		Category:  params.Category,
		Types:     cfg.AssessmentTypes,
		Schools:   cfg.BackfillSchools,
		StartYear: startYear,
	})
}
