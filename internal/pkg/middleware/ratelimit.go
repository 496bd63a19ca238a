package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/cache"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
)

const (
	DefaultRateLimitMax    = 100
	DefaultRateLimitWindow = 15 * time.Minute

	// rateLimitDB keeps limiter counters apart from the cache (DB 0)
	rateLimitDB = 2
)

type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// Storage shares counters between instances; nil keeps them in memory.
	Storage fiber.Storage
}

// RateLimiter limits /api requests per client IP. Counters live in Redis so
// every instance sees the same budget. Without a reachable Redis the limiter
// is skipped.
func RateLimiter() fiber.Handler {
	if !env.GetBool("RATE_LIMIT_ENABLED", true) {
		log.Info("[RateLimit] Disabled by configuration")
		return passThrough
	}
	if !cache.IsAvailable() {
		log.Warn("[RateLimit] Cache unavailable, requests are not rate limited")
		return passThrough
	}

	host, port, err := cache.HostPort()
	if err != nil {
		log.Warnf("[RateLimit] %v, requests are not rate limited", err)
		return passThrough
	}

	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: rateLimitDB,
		Reset:    false,
	})

	return NewRateLimiter(RateLimitConfig{
		Max:     int(env.GetInt64("RATE_LIMIT_MAX", DefaultRateLimitMax)),
		Window:  env.GetDuration("RATE_LIMIT_WINDOW", DefaultRateLimitWindow),
		Storage: storage,
	})
}

// NewRateLimiter builds the limiter from explicit settings.
func NewRateLimiter(cfg RateLimitConfig) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = DefaultRateLimitMax
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitWindow
	}
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Window,
		Storage:    cfg.Storage,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return "ratelimit:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later",
			})
		},
	})
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}
