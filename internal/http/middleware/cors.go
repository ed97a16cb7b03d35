package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

var baseAllowedHeaders = []string{"Origin", "Content-Type", "Accept", RequestIDHeader}

// CORS allows browser clients on any origin to call the API. extraHeaders
// are added to the allowed request headers, e.g. the location header.
func CORS(extraHeaders ...string) fiber.Handler {
	allowed := strings.Join(append(append([]string{}, baseAllowedHeaders...), extraHeaders...), ", ")

	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Set("Access-Control-Allow-Headers", allowed)
		c.Set("Access-Control-Expose-Headers", "Content-Length, Content-Type, Location, "+RequestIDHeader)
		c.Set("Access-Control-Max-Age", "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
