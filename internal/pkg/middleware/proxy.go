package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/env"
)

// ApplyTrustedProxies makes c.IP() return the client address forwarded by
// the proxies listed in TRUSTED_PROXIES (IPs or CIDRs, comma separated).
// PROXY_HEADER picks the header, X-Forwarded-For by default. With no trusted
// proxy configured the socket address is used and the header is ignored.
func ApplyTrustedProxies(cfg *fiber.Config) {
	var proxies []string
	for _, p := range strings.Split(env.GetEnv("TRUSTED_PROXIES", ""), ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	if len(proxies) == 0 {
		return
	}

	cfg.ProxyHeader = env.GetEnv("PROXY_HEADER", fiber.HeaderXForwardedFor)
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = proxies
	cfg.EnableIPValidation = true
	log.Infof("[Proxy] Reading client addresses from %s behind %d trusted proxies", cfg.ProxyHeader, len(proxies))
}
