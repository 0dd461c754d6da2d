package handlers

import (
	"strconv"
	"time"

	"xo-arena/storage"

	"github.com/gofiber/fiber/v2"
)

// SetupLeaderboardRoutes wires the read-only leaderboard and status
// endpoints. These carry no player identity requirement.
func SetupLeaderboardRoutes(app *fiber.App, store storage.Store) {
	app.Get("/leaderboard", getLeaderboard(store))
	app.Get("/status", getStatus(store))
}

func getLeaderboard(store storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			limit = 10
		}

		entries, err := store.TopLeaderboard(limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch leaderboard"})
		}
		return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
	}
}

func getStatus(store storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessions, err := store.CountActiveSessions()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to count sessions"})
		}
		players, err := store.CountActivePlayers()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to count players"})
		}
		return c.JSON(fiber.Map{
			"active_sessions": sessions,
			"active_players":  players,
			"server_time":     time.Now().UTC(),
		})
	}
}
