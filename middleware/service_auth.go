package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ServiceAuthMiddleware validates the shared Bearer token from the gateway.
// When MATCH_SERVICE_TOKEN is unset the check is disabled, which is the
// expected setup for local development.
func ServiceAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("MATCH_SERVICE_TOKEN")
	if expectedToken == "" {
		log.Println("[Auth] MATCH_SERVICE_TOKEN not set, gateway auth disabled")
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != expectedToken {
			log.Printf("[Auth] invalid gateway token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}
