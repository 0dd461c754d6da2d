package services

import (
	"log"
	"sync"
	"time"

	"xo-arena/models"
	"xo-arena/storage"

	"github.com/google/uuid"
)

// JoinReason classifies matchmaking rejections.
type JoinReason string

const (
	ReasonAlreadyQueued    JoinReason = "already_queued"
	ReasonAlreadyInSession JoinReason = "already_in_session"
	ReasonNotQueued        JoinReason = "not_queued"
)

// JoinResult reports what happened to a join request: rejected, parked in
// the queue, or matched into a fresh session.
type JoinResult struct {
	Rejected   JoinReason `json:"rejected,omitempty"`
	Queued     bool       `json:"queued"`
	Matched    bool       `json:"matched"`
	SessionID  string     `json:"session_id,omitempty"`
	OpponentID string     `json:"opponent_id,omitempty"`
}

// MatchmakingService pairs waiting players in FIFO order of join time.
// One process-wide mutex serializes every enqueue-then-match sequence, so
// two concurrent joins can neither double-book a player nor leave a
// phantom queue entry.
type MatchmakingService struct {
	store storage.Store
	games *GameService

	mu sync.Mutex // the matchmaking lock
}

func NewMatchmakingService(store storage.Store, games *GameService) *MatchmakingService {
	return &MatchmakingService{store: store, games: games}
}

// Join runs enqueue-then-match as one atomic unit. The duplicate check runs
// once before the lock for fast rejection and again inside it, since state
// may have changed between the two points.
func (s *MatchmakingService) Join(playerID, displayName, origin, mode string) (*JoinResult, error) {
	if reason, err := s.rejectReason(playerID); err != nil {
		return nil, err
	} else if reason != "" {
		return &JoinResult{Rejected: reason}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reason, err := s.rejectReason(playerID)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return &JoinResult{Rejected: reason}, nil
	}

	if err := s.enqueueLocked(playerID, displayName, origin); err != nil {
		return nil, err
	}

	opponent, err := s.tryMatchLocked(playerID)
	if err != nil {
		return nil, err
	}
	if opponent == nil {
		log.Printf("[Matchmaking] %s queued, waiting for an opponent", playerID)
		return &JoinResult{Queued: true}, nil
	}

	sessionID, err := s.games.CreateSession(
		storage.PlayerRef{ID: playerID, DisplayName: displayName},
		storage.PlayerRef{ID: opponent.PlayerID, DisplayName: opponent.DisplayName},
		mode,
	)
	if err != nil {
		return nil, err
	}
	return &JoinResult{Matched: true, SessionID: sessionID, OpponentID: opponent.PlayerID}, nil
}

// Enqueue inserts or replaces the caller's queue entry without matching.
// Returns a non-empty reason when the player is already queued or playing.
func (s *MatchmakingService) Enqueue(playerID, displayName, origin string) (JoinReason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reason, err := s.rejectReason(playerID)
	if err != nil || reason != "" {
		return reason, err
	}
	return "", s.enqueueLocked(playerID, displayName, origin)
}

// TryMatch removes the caller and the oldest other waiting player from the
// queue and returns that opponent, or nil when nobody else is waiting.
func (s *MatchmakingService) TryMatch(playerID string) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tryMatchLocked(playerID)
}

// Cancel removes the caller's queue entry. The bool reports whether an
// entry existed; false means NotQueued.
func (s *MatchmakingService) Cancel(playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queued, err := s.store.HasQueueEntry(playerID)
	if err != nil {
		return false, err
	}
	if !queued {
		return false, nil
	}
	if err := s.store.RemoveQueueEntries([]string{playerID}); err != nil {
		return false, err
	}
	log.Printf("[Matchmaking] %s left the queue", playerID)
	return true, nil
}

func (s *MatchmakingService) rejectReason(playerID string) (JoinReason, error) {
	queued, err := s.store.HasQueueEntry(playerID)
	if err != nil {
		return "", err
	}
	if queued {
		return ReasonAlreadyQueued, nil
	}
	playing, err := s.store.HasActiveSession(playerID)
	if err != nil {
		return "", err
	}
	if playing {
		return ReasonAlreadyInSession, nil
	}
	return "", nil
}

func (s *MatchmakingService) enqueueLocked(playerID, displayName, origin string) error {
	return s.store.UpsertQueueEntry(models.QueueEntry{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		DisplayName: displayName,
		Origin:      origin,
		JoinedAt:    time.Now().UTC(),
	})
}

// tryMatchLocked scans the queue in join-time order for the oldest entry
// that is not the caller and removes both entries atomically.
func (s *MatchmakingService) tryMatchLocked(playerID string) (*models.QueueEntry, error) {
	entries, err := s.store.LoadQueue()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].PlayerID == playerID {
			continue
		}
		opponent := entries[i]
		if err := s.store.RemoveQueueEntries([]string{playerID, opponent.PlayerID}); err != nil {
			return nil, err
		}
		return &opponent, nil
	}
	return nil, nil
}
