package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
)

// CronAuthConfig holds the two accepted credentials for scheduled endpoints.
type CronAuthConfig struct {
	// Secret is compared against "Authorization: Bearer <secret>". Empty rejects bearer auth.
	Secret string
	// PlatformHeader is a header the hosting scheduler sets on its own calls
	// (e.g. "x-vercel-cron"). Empty disables it.
	PlatformHeader string
}

func CronAuthConfigFromEnv() CronAuthConfig {
	return CronAuthConfig{
		Secret:         env.GetEnv("CRON_SECRET", ""),
		PlatformHeader: env.GetEnv("CRON_PLATFORM_HEADER", ""),
	}
}

// CronAuth guards scheduled endpoints and answers JSON 401 on failure.
func CronAuth(cfg CronAuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.PlatformHeader != "" && strings.TrimSpace(c.Get(cfg.PlatformHeader)) != "" {
			return c.Next()
		}

		token := extractBearer(c)
		if cfg.Secret != "" && token != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Secret)) == 1 {
			return c.Next()
		}

		log.Warnf("[CronAuth] Rejected %s %s from %s", c.Method(), c.Path(), c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
}

func extractBearer(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
