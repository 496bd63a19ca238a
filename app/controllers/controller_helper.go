package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GetClientIP determines the client address considering Cloudflare and
// standard proxy headers. The result is forwarded to Turnstile as remoteip.
func GetClientIP(c *fiber.Ctx) string {
	// Trusted proxies configured: fiber already resolved the header
	if c.App().Config().EnableTrustedProxyCheck {
		return c.IP()
	}

	// 1. Cloudflare provides the original client IP in this header
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}

	// 2. X-Forwarded-For can contain a list of IPs, the first one is the client
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(c.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	// 3. No proxy headers, unwrap IPv4-mapped IPv6 (::ffff:192.168.1.1)
	ip := c.IP()
	if strings.HasPrefix(ip, "::ffff:") && strings.Contains(ip, ".") {
		ip = strings.TrimPrefix(ip, "::ffff:")
	}
	return ip
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func respondErrorDetails(c *fiber.Ctx, status int, message string, details interface{}) error {
	return c.Status(status).JSON(fiber.Map{"error": message, "details": details})
}

// HandleMethodNotAllowed answers any non-POST request on the API routes.
func HandleMethodNotAllowed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAllow, "POST, OPTIONS")
	return respondError(c, fiber.StatusMethodNotAllowed, "Method not allowed")
}
