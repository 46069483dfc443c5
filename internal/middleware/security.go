package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
)

// ThirdPartyHosts are the ad, analytics and video origins the pages may load.
var ThirdPartyHosts = []string{
	"https://pagead2.googlesyndication.com",
	"https://googleads.g.doubleclick.net",
	"https://www.googletagmanager.com",
	"https://www.google-analytics.com",
	"https://www.youtube.com",
	"https://www.youtube-nocookie.com",
	"https://player.vimeo.com",
}

// SandboxPolicy is the CSP applied to raw uploaded payloads. Top-level
// navigation is never in the allow list.
const SandboxPolicy = "sandbox allow-scripts allow-same-origin allow-forms allow-popups"

// ContentSecurityPolicy builds the site-wide policy from the store hosts and
// the fixed third-party list.
func ContentSecurityPolicy(storeHosts []string) string {
	external := append(append([]string{}, storeHosts...), ThirdPartyHosts...)
	ext := strings.Join(external, " ")

	directives := []string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline' " + ext,
		"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com",
		"font-src 'self' https://fonts.gstatic.com",
		"img-src 'self' data: https:",
		"connect-src 'self' " + ext,
		"frame-src 'self' " + ext,
		"object-src 'none'",
		"base-uri 'self'",
		"frame-ancestors 'self'",
	}
	return strings.Join(directives, "; ")
}

// SecurityHeaders applies helmet with the site CSP. Embedders of third-party
// iframes need a permissive COEP.
func SecurityHeaders(storeHosts []string) fiber.Handler {
	return helmet.New(helmet.Config{
		ContentSecurityPolicy:     ContentSecurityPolicy(storeHosts),
		CrossOriginEmbedderPolicy: "unsafe-none",
		CrossOriginResourcePolicy: "cross-origin",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
	})
}

// AdFreeLocal is the fiber local set on ad-free routes.
const AdFreeLocal = "adFree"

// IsAdFree reports whether path falls under one of prefixes. A prefix matches
// the path itself or any path below it.
func IsAdFree(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// AdFree marks responses on ad-free routes with X-Ad-Slots: off so the
// front end suppresses ad slots.
func AdFree(prefixes []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if IsAdFree(c.Path(), prefixes) {
			c.Locals(AdFreeLocal, true)
			c.Set("X-Ad-Slots", "off")
		}
		return c.Next()
	}
}
