package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"xo-arena/services"
	"xo-arena/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	bus := services.NewEventBus()
	ratings := services.NewRatingService(store, 0)
	games := services.NewGameService(store, ratings, bus)
	matchmaking := services.NewMatchmakingService(store, games)

	app := fiber.New()
	SetupMatchRoutes(app, matchmaking, games)
	SetupLeaderboardRoutes(app, store)
	return app, store
}

func doRequest(t *testing.T, app *fiber.App, method, path, playerID string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if playerID != "" {
		req.Header.Set("X-Player-ID", playerID)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestJoinRequiresPlayerIdentity(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doRequest(t, app, http.MethodPost, "/queue/join", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["error"], "X-Player-ID")
}

func TestJoinQueueThenMatch(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doRequest(t, app, http.MethodPost, "/queue/join", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["queued"])
	assert.Equal(t, false, body["matched"])

	status, body = doRequest(t, app, http.MethodPost, "/queue/join", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["matched"])
	assert.Equal(t, "alice", body["opponent_id"])
	assert.NotEmpty(t, body["session_id"])
}

func TestDoubleJoinConflicts(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doRequest(t, app, http.MethodPost, "/queue/join", "alice", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := doRequest(t, app, http.MethodPost, "/queue/join", "alice", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(services.ReasonAlreadyQueued), body["error"])
}

func TestCancelQueue(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doRequest(t, app, http.MethodPost, "/queue/join", "alice", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := doRequest(t, app, http.MethodDelete, "/queue", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["cancelled"])

	status, body = doRequest(t, app, http.MethodDelete, "/queue", "alice", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(services.ReasonNotQueued), body["error"])
}

// matchedSession joins two players and returns the session id plus which
// player got X, read back from the session snapshot.
func matchedSession(t *testing.T, app *fiber.App) (sessionID, xPlayer, oPlayer string) {
	t.Helper()
	status, _ := doRequest(t, app, http.MethodPost, "/queue/join", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	status, body := doRequest(t, app, http.MethodPost, "/queue/join", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	sessionID = body["session_id"].(string)

	status, snapshot := doRequest(t, app, http.MethodGet, "/sessions/"+sessionID, "alice", nil)
	require.Equal(t, http.StatusOK, status)
	return sessionID, snapshot["player_x_id"].(string), snapshot["player_o_id"].(string)
}

func TestMoveFlowOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	sessionID, xPlayer, oPlayer := matchedSession(t, app)

	// O moving first is out of turn.
	status, body := doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/moves", oPlayer, fiber.Map{"cell": 0})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(services.RejectNotYourTurn), body["error"])

	status, body = doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/moves", xPlayer, fiber.Map{"cell": 0})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["accepted"])
	assert.Equal(t, "X--------", body["board"])
	assert.Equal(t, "O", body["turn"])

	status, body = doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/moves", oPlayer, fiber.Map{"cell": 9})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(services.RejectInvalidIndex), body["error"])

	status, body = doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/moves", oPlayer, fiber.Map{"cell": 0})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, string(services.RejectCellOccupied), body["error"])

	status, _ = doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/moves", "mallory", fiber.Map{"cell": 4})
	assert.Equal(t, http.StatusConflict, status)
}

func TestMoveOnUnknownSession(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doRequest(t, app, http.MethodPost, "/sessions/no-such-id/moves", "alice", fiber.Map{"cell": 0})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "session not found", body["error"])
}

func TestForfeitUpdatesLeaderboard(t *testing.T) {
	app, _ := newTestApp(t)
	sessionID, xPlayer, oPlayer := matchedSession(t, app)

	status, body := doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/forfeit", xPlayer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["finished"])

	status, snapshot := doRequest(t, app, http.MethodGet, "/sessions/"+sessionID, xPlayer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "finished", snapshot["status"])

	status, board := doRequest(t, app, http.MethodGet, "/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, status)
	entries := board["entries"].([]any)
	require.Len(t, entries, 2)
	top := entries[0].(map[string]any)
	assert.Equal(t, oPlayer, top["player_id"])
	assert.Equal(t, float64(1016), top["rating"])
}

func TestStatusEndpoint(t *testing.T) {
	app, _ := newTestApp(t)
	matchedSession(t, app)

	status, body := doRequest(t, app, http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["active_sessions"])
	assert.Equal(t, float64(2), body["active_players"])
	assert.NotEmpty(t, body["server_time"])
}
