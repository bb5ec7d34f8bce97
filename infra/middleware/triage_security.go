package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"complaint_triage/pkg/apperr"
)

// SecurityHeaders sets response headers for a JSON-only API.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "no-referrer")
		// 응답은 JSON 뿐이라 아무것도 로드하지 않음
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		return c.Next()
	}
}

// RequireJSON rejects POST and PUT bodies that are not application/json.
// Bodyless requests pass.
func RequireJSON() fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch {
			return c.Next()
		}
		if len(c.Body()) == 0 {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType == "" {
			return apperr.BadRequest("content-type header required")
		}
		if !strings.HasPrefix(strings.ToLower(contentType), fiber.MIMEApplicationJSON) {
			return apperr.New("UNSUPPORTED_MEDIA_TYPE", "unsupported content type", fiber.StatusUnsupportedMediaType)
		}
		return c.Next()
	}
}
