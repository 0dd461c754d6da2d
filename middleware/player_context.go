package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// PlayerContextMiddleware extracts the player identity injected by the
// gateway. Every mutating route needs a player id; the display name is
// optional and falls back to the id.
func PlayerContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Copy header values out of fasthttp's reusable request buffer:
		// they are retained past this request (matchmaking queue, sessions).
		playerID := utils.CopyString(c.Get("X-Player-ID"))
		if playerID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-Player-ID header, requests must come through the gateway with identity context",
			})
		}

		displayName := utils.CopyString(c.Get("X-Player-Name"))
		if displayName == "" {
			displayName = playerID
		}

		c.Locals("player_id", playerID)
		c.Locals("player_name", displayName)
		return c.Next()
	}
}
