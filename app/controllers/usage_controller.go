package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const maxUsageDays = 31

type UsageReporter interface {
	Snapshot(ctx context.Context, days int) (map[string]map[string]int64, error)
}

// HandleUsage returns the daily usage counters, ?days=N (default 7).
func HandleUsage(r UsageReporter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days := c.QueryInt("days", 7)
		if days < 1 || days > maxUsageDays {
			return respondError(c, fiber.StatusBadRequest, "days must be between 1 and 31")
		}

		snap, err := r.Snapshot(c.UserContext(), days)
		if err != nil {
			fiberlog.Errorf("[Usage] Reading counters failed: %v", err)
			return respondError(c, fiber.StatusInternalServerError, "Request failed")
		}
		return c.JSON(fiber.Map{"days": snap})
	}
}
