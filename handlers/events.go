package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"xo-arena/services"

	"github.com/gofiber/fiber/v2"
)

// SetupEventRoutes wires the SSE stream the transport consumer subscribes
// to for MatchFormed / MoveApplied / GameEnded / GameExpired events.
func SetupEventRoutes(app *fiber.App, bus *services.EventBus) {
	app.Get("/events/stream", streamEvents(bus))
}

// streamEvents pushes core events over Server-Sent Events. Delivery is
// fire-and-forget: the core does not retry, and a subscriber that falls
// behind its buffer misses events.
func streamEvents(bus *services.EventBus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		subID, events := bus.Subscribe(64)
		ctx := c.Context()

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer bus.Unsubscribe(subID)

			keepalive := time.NewTicker(15 * time.Second)
			defer keepalive.Stop()

			// Initial keepalive (comment event)
			w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}

			for {
				select {
				case event, ok := <-events:
					if !ok {
						return
					}
					payload, _ := json.Marshal(event)
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, payload)
					if err := w.Flush(); err != nil {
						// Client disconnected
						return
					}
				case <-keepalive.C:
					w.WriteString(":\n\n")
					if err := w.Flush(); err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		})

		return nil
	}
}
