package services

import (
	"testing"

	"xo-arena/engine"
	"xo-arena/models"
	"xo-arena/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGameFixture builds a game service on the in-memory store with a
// deterministic coin flip: the first player always becomes X.
func newGameFixture(t *testing.T) (*GameService, *storage.MemoryStore, *EventBus) {
	t.Helper()
	store := storage.NewMemoryStore()
	bus := NewEventBus()
	games := NewGameService(store, NewRatingService(store, DefaultKFactor), bus)
	games.coinFlip = func() bool { return false }
	return games, store, bus
}

func startSession(t *testing.T, games *GameService, x, o string) string {
	t.Helper()
	id, err := games.CreateSession(player(x), player(o), models.ModeCasual)
	require.NoError(t, err)
	return id
}

func mustMove(t *testing.T, games *GameService, sessionID, playerID string, cell int) *MoveResult {
	t.Helper()
	result, err := games.SubmitMove(sessionID, playerID, cell)
	require.NoError(t, err)
	require.True(t, result.Accepted, "move by %s on cell %d rejected: %s", playerID, cell, result.Reason)
	return result
}

func TestCreateSessionRefusesSelfPlay(t *testing.T) {
	games, _, _ := newGameFixture(t)
	_, err := games.CreateSession(player("alice"), player("alice"), models.ModeCasual)
	assert.Error(t, err)
}

func TestCreateSessionCoinFlipAssignsSides(t *testing.T) {
	games, _, _ := newGameFixture(t)

	games.coinFlip = func() bool { return true }
	id := startSession(t, games, "alice", "bob")
	session, err := games.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, "bob", session.PlayerXID)
	assert.Equal(t, "alice", session.PlayerOID)
	assert.Equal(t, models.TurnX, session.Turn)
	assert.Equal(t, engine.EmptyBoard, session.Board)
}

func TestSubmitMoveAlternatesTurns(t *testing.T) {
	games, _, _ := newGameFixture(t)
	id := startSession(t, games, "alice", "bob")

	result := mustMove(t, games, id, "alice", 4)
	assert.Equal(t, "----X----", result.Board)
	assert.Equal(t, models.TurnO, result.Turn)

	result = mustMove(t, games, id, "bob", 0)
	assert.Equal(t, "O---X----", result.Board)
	assert.Equal(t, models.TurnX, result.Turn)
}

func TestSubmitMoveRejections(t *testing.T) {
	games, _, _ := newGameFixture(t)
	id := startSession(t, games, "alice", "bob")

	result, err := games.SubmitMove(id, "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, RejectNotYourTurn, result.Reason)

	result, err = games.SubmitMove(id, "alice", 9)
	require.NoError(t, err)
	assert.Equal(t, RejectInvalidIndex, result.Reason)

	result, err = games.SubmitMove(id, "alice", -1)
	require.NoError(t, err)
	assert.Equal(t, RejectInvalidIndex, result.Reason)

	mustMove(t, games, id, "alice", 4)
	result, err = games.SubmitMove(id, "bob", 4)
	require.NoError(t, err)
	assert.Equal(t, RejectCellOccupied, result.Reason)

	_, err = games.SubmitMove("no-such-session", "alice", 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWinFinishesSessionAndRates(t *testing.T) {
	games, store, _ := newGameFixture(t)
	id := startSession(t, games, "alice", "bob")

	mustMove(t, games, id, "alice", 0)
	mustMove(t, games, id, "bob", 3)
	mustMove(t, games, id, "alice", 1)
	mustMove(t, games, id, "bob", 4)
	result := mustMove(t, games, id, "alice", 2)

	assert.True(t, result.Finished)
	assert.Equal(t, engine.VerdictX, result.Verdict)
	assert.Equal(t, "XXXOO----", result.Board)

	session, err := games.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFinished, session.Status)
	assert.Equal(t, "XXXOO----", session.Board)

	winnerRating, err := store.LoadRating("alice")
	require.NoError(t, err)
	assert.Equal(t, 1016, winnerRating)
	loserRating, err := store.LoadRating("bob")
	require.NoError(t, err)
	assert.Equal(t, 984, loserRating)
}

func TestDrawFinishesSessionWithDrawOutcome(t *testing.T) {
	games, store, _ := newGameFixture(t)
	id := startSession(t, games, "alice", "bob")

	// X O X / X O O / O X X reached without an earlier line:
	// X: 0 2 3 7 8, O: 4 1 5 6
	moves := []struct {
		player string
		cell   int
	}{
		{"alice", 0}, {"bob", 4},
		{"alice", 2}, {"bob", 1},
		{"alice", 3}, {"bob", 5},
		{"alice", 7}, {"bob", 6},
	}
	for _, m := range moves {
		mustMove(t, games, id, m.player, m.cell)
	}
	result := mustMove(t, games, id, "alice", 8)

	assert.True(t, result.Finished)
	assert.Equal(t, engine.VerdictDraw, result.Verdict)

	entries, err := store.TopLeaderboard(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, 1, e.Draws)
		assert.Equal(t, models.DefaultRating, e.Rating)
	}
}

func TestMoveOnFinishedSessionRejectedWithoutMutation(t *testing.T) {
	games, _, _ := newGameFixture(t)
	id := startSession(t, games, "alice", "bob")

	mustMove(t, games, id, "alice", 0)
	mustMove(t, games, id, "bob", 3)
	mustMove(t, games, id, "alice", 1)
	mustMove(t, games, id, "bob", 4)
	mustMove(t, games, id, "alice", 2)

	result, err := games.SubmitMove(id, "bob", 5)
	require.NoError(t, err)
	assert.Equal(t, RejectSessionNotActive, result.Reason)

	session, err := games.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, "XXXOO----", session.Board)
}

func TestFinishedSessionRatedExactlyOnce(t *testing.T) {
	games, store, _ := newGameFixture(t)
	id := startSession(t, games, "alice", "bob")

	mustMove(t, games, id, "alice", 0)
	mustMove(t, games, id, "bob", 3)
	mustMove(t, games, id, "alice", 1)
	mustMove(t, games, id, "bob", 4)
	mustMove(t, games, id, "alice", 2)

	// Neither a repeated winning move nor a forfeit on the finished
	// session may re-apply the rating change.
	_, err := games.SubmitMove(id, "alice", 5)
	require.NoError(t, err)
	_, err = games.Forfeit(id, "bob")
	require.NoError(t, err)

	rating, err := store.LoadRating("alice")
	require.NoError(t, err)
	assert.Equal(t, 1016, rating)

	entries, err := store.TopLeaderboard(10)
	require.NoError(t, err)
	assert.Equal(t, 1, entries[0].Wins)
}

func TestForfeitAwardsOpponent(t *testing.T) {
	games, store, _ := newGameFixture(t)
	id := startSession(t, games, "alice", "bob")

	result, err := games.Forfeit(id, "alice")
	require.NoError(t, err)
	require.True(t, result.Accepted)
	assert.Equal(t, engine.VerdictO, result.Verdict)

	bobRating, err := store.LoadRating("bob")
	require.NoError(t, err)
	assert.Equal(t, 1016, bobRating)

	result, err = games.Forfeit(id, "bob")
	require.NoError(t, err)
	assert.Equal(t, RejectSessionNotActive, result.Reason)
}

func TestForfeitByOutsiderRejected(t *testing.T) {
	games, _, _ := newGameFixture(t)
	id := startSession(t, games, "alice", "bob")

	result, err := games.Forfeit(id, "mallory")
	require.NoError(t, err)
	assert.Equal(t, RejectNotParticipant, result.Reason)
}

func TestForceExpireIsRecordNeutral(t *testing.T) {
	games, store, _ := newGameFixture(t)
	id := startSession(t, games, "alice", "bob")
	mustMove(t, games, id, "alice", 4)

	expired, err := games.ForceExpire(id)
	require.NoError(t, err)
	assert.True(t, expired)

	session, err := games.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, session.Status)
	assert.Equal(t, "----X----", session.Board)

	// No ratings, no counters.
	entries, err := store.TopLeaderboard(10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	result, err := games.SubmitMove(id, "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, RejectSessionNotActive, result.Reason)
}

func TestForceExpireOnTerminalSessionIsNoOp(t *testing.T) {
	games, _, _ := newGameFixture(t)
	id := startSession(t, games, "alice", "bob")

	expired, err := games.ForceExpire(id)
	require.NoError(t, err)
	assert.True(t, expired)

	expired, err = games.ForceExpire(id)
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestGameEventsOrdering(t *testing.T) {
	games, _, bus := newGameFixture(t)
	_, events := bus.Subscribe(32)

	id := startSession(t, games, "alice", "bob")
	mustMove(t, games, id, "alice", 0)
	mustMove(t, games, id, "bob", 3)
	mustMove(t, games, id, "alice", 1)
	mustMove(t, games, id, "bob", 4)
	mustMove(t, games, id, "alice", 2)

	var kinds []EventKind
	for i := 0; i < 6; i++ {
		kinds = append(kinds, (<-events).Kind)
	}
	assert.Equal(t, []EventKind{
		EventMatchFormed,
		EventMoveApplied, EventMoveApplied, EventMoveApplied, EventMoveApplied,
		EventGameEnded,
	}, kinds)
}
