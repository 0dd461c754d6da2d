// Package storage owns all durable state: the matchmaking queue, game
// sessions, and the leaderboard. The rest of the system only talks to the
// Store interface, never to a storage engine directly.
package storage

import (
	"time"

	"xo-arena/models"
)

// PlayerRef identifies one side of a session together with the display
// name captured from the player's queue entry.
type PlayerRef struct {
	ID          string
	DisplayName string
}

// SessionRef is the supervisor's view of an active session: just enough
// to decide whether it has outlived the game timeout.
type SessionRef struct {
	ID        string
	StartedAt time.Time
}

// Store abstracts persistence for the queue, sessions, and the leaderboard.
// Implementations can be swapped for testing (MemoryStore) or a real
// backend (GormStore). Load-style methods return (nil, nil) on absence.
type Store interface {
	// Matchmaking queue, ordered by join time ascending.
	LoadQueue() ([]models.QueueEntry, error)
	UpsertQueueEntry(entry models.QueueEntry) error
	RemoveQueueEntries(playerIDs []string) error
	HasQueueEntry(playerID string) (bool, error)
	HasActiveSession(playerID string) (bool, error)

	// Sessions. CreateSession assigns and returns the session id.
	CreateSession(playerX, playerO PlayerRef, mode string) (string, error)
	LoadSession(sessionID string) (*models.GameSession, error)
	SaveSessionState(sessionID, board, turn string) error
	MarkSessionStatus(sessionID, status string) error
	ListActiveSessions() ([]SessionRef, error)
	CountActiveSessions() (int64, error)
	CountActivePlayers() (int64, error)

	// Ratings and outcome counters, one leaderboard row per player.
	LoadRating(playerID string) (int, error)
	SaveRating(playerID, displayName string, rating int) error
	RecordOutcome(playerID, displayName string, outcome models.Outcome) error
	TopLeaderboard(limit int) ([]models.LeaderboardEntry, error)
}
