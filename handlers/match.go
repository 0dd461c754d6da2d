package handlers

import (
	"errors"

	"xo-arena/middleware"
	"xo-arena/services"

	"github.com/gofiber/fiber/v2"
)

// SetupMatchRoutes wires the queue and session endpoints. All of them need
// a player identity from the gateway.
func SetupMatchRoutes(app *fiber.App, matchmaking *services.MatchmakingService, games *services.GameService) {
	// Attach the middleware per route: a Group("/") would register a
	// catch-all Use and also guard the public leaderboard/status routes.
	identity := middleware.PlayerContextMiddleware()

	app.Post("/queue/join", identity, joinQueue(matchmaking))
	app.Delete("/queue", identity, cancelQueue(matchmaking))
	app.Post("/sessions/:id/moves", identity, submitMove(games))
	app.Post("/sessions/:id/forfeit", identity, forfeit(games))
	app.Get("/sessions/:id", identity, getSession(games))
}

func joinQueue(matchmaking *services.MatchmakingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		playerID := c.Locals("player_id").(string)
		displayName := c.Locals("player_name").(string)

		var req struct {
			Mode   string `json:"mode"`
			Origin string `json:"origin"`
		}
		// Body is optional; an empty join defaults to casual mode.
		_ = c.BodyParser(&req)

		result, err := matchmaking.Join(playerID, displayName, req.Origin, req.Mode)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if result.Rejected != "" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": string(result.Rejected)})
		}
		return c.JSON(result)
	}
}

func cancelQueue(matchmaking *services.MatchmakingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		playerID := c.Locals("player_id").(string)

		removed, err := matchmaking.Cancel(playerID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if !removed {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": string(services.ReasonNotQueued)})
		}
		return c.JSON(fiber.Map{"cancelled": true})
	}
}

func submitMove(games *services.GameService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		playerID := c.Locals("player_id").(string)
		sessionID := c.Params("id")

		var req struct {
			Cell int `json:"cell"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}

		result, err := games.SubmitMove(sessionID, playerID, req.Cell)
		if err != nil {
			return sessionError(c, err)
		}
		if !result.Accepted {
			return c.Status(rejectStatus(result.Reason)).JSON(fiber.Map{"error": string(result.Reason)})
		}
		return c.JSON(result)
	}
}

func forfeit(games *services.GameService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		playerID := c.Locals("player_id").(string)
		sessionID := c.Params("id")

		result, err := games.Forfeit(sessionID, playerID)
		if err != nil {
			return sessionError(c, err)
		}
		if !result.Accepted {
			return c.Status(rejectStatus(result.Reason)).JSON(fiber.Map{"error": string(result.Reason)})
		}
		return c.JSON(result)
	}
}

func getSession(games *services.GameService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := games.Snapshot(c.Params("id"))
		if err != nil {
			return sessionError(c, err)
		}
		return c.JSON(session)
	}
}

func rejectStatus(reason services.RejectReason) int {
	if reason == services.RejectInvalidIndex {
		return fiber.StatusBadRequest
	}
	return fiber.StatusConflict
}

func sessionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
