package controllers

import (
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/metrics/counter"
)

// HandleCleanup runs the retention sweep on behalf of an external scheduler.
// Authentication is done by middleware.CronAuth.
func (a *APIController) HandleCleanup(c *fiber.Ctx) error {
	if a.Sweeper == nil {
		fiberlog.Error("[Cleanup] No sweeper configured")
		return respondError(c, fiber.StatusInternalServerError, "Cleanup failed")
	}

	res, err := a.Sweeper.Run(c.UserContext())
	if err != nil {
		fiberlog.Errorf("[Cleanup] Sweep failed: %v", err)
		return respondError(c, fiber.StatusInternalServerError, "Cleanup failed")
	}

	a.count(counter.EventBlobsDeleted, int64(res.Deleted))
	return c.JSON(fiber.Map{
		"success":      res.Failed == 0,
		"deletedCount": res.Deleted,
		"failedCount":  res.Failed,
		"errors":       res.Errors,
	})
}
