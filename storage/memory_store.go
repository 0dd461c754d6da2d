package storage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"xo-arena/engine"
	"xo-arena/models"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the test suite
// and STORE_DRIVER=memory development runs; no state survives a restart.
type MemoryStore struct {
	mu          sync.Mutex
	queue       []models.QueueEntry
	sessions    map[string]*models.GameSession
	leaderboard map[string]*models.LeaderboardEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*models.GameSession),
		leaderboard: make(map[string]*models.LeaderboardEntry),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) LoadQueue() ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.QueueEntry, len(s.queue))
	copy(out, s.queue)
	// Join-time ascending; the slice itself preserves insertion order for ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *MemoryStore) UpsertQueueEntry(entry models.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.removeLocked([]string{entry.PlayerID})
	s.queue = append(s.queue, entry)
	return nil
}

func (s *MemoryStore) RemoveQueueEntries(playerIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(playerIDs)
	return nil
}

func (s *MemoryStore) removeLocked(playerIDs []string) {
	kept := s.queue[:0]
	for _, e := range s.queue {
		drop := false
		for _, id := range playerIDs {
			if e.PlayerID == id {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, e)
		}
	}
	s.queue = kept
}

func (s *MemoryStore) HasQueueEntry(playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.queue {
		if e.PlayerID == playerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) HasActiveSession(playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.Status != models.SessionActive {
			continue
		}
		if session.PlayerXID == playerID || session.PlayerOID == playerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateSession(playerX, playerO PlayerRef, mode string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := &models.GameSession{
		ID:          uuid.NewString(),
		PlayerXID:   playerX.ID,
		PlayerOID:   playerO.ID,
		PlayerXName: playerX.DisplayName,
		PlayerOName: playerO.DisplayName,
		Board:       engine.EmptyBoard,
		Turn:        models.TurnX,
		Status:      models.SessionActive,
		Mode:        mode,
		StartedAt:   time.Now().UTC(),
	}
	s.sessions[session.ID] = session
	return session.ID, nil
}

func (s *MemoryStore) LoadSession(sessionID string) (*models.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) SaveSessionState(sessionID, board, turn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Status != models.SessionActive {
		return nil
	}
	session.Board = board
	session.Turn = turn
	return nil
}

func (s *MemoryStore) MarkSessionStatus(sessionID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		session.Status = status
	}
	return nil
}

func (s *MemoryStore) ListActiveSessions() ([]SessionRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []SessionRef
	for _, session := range s.sessions {
		if session.Status == models.SessionActive {
			refs = append(refs, SessionRef{ID: session.ID, StartedAt: session.StartedAt})
		}
	}
	return refs, nil
}

func (s *MemoryStore) CountActiveSessions() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, session := range s.sessions {
		if session.Status == models.SessionActive {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountActivePlayers() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	players := make(map[string]struct{})
	for _, session := range s.sessions {
		if session.Status == models.SessionActive {
			players[session.PlayerXID] = struct{}{}
			players[session.PlayerOID] = struct{}{}
		}
	}
	return int64(len(players)), nil
}

func (s *MemoryStore) LoadRating(playerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.leaderboard[playerID]; ok {
		return entry.Rating, nil
	}
	return models.DefaultRating, nil
}

func (s *MemoryStore) SaveRating(playerID, displayName string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.ensureEntryLocked(playerID, displayName)
	entry.DisplayName = displayName
	entry.Rating = rating
	return nil
}

func (s *MemoryStore) RecordOutcome(playerID, displayName string, outcome models.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.ensureEntryLocked(playerID, displayName)
	switch outcome {
	case models.OutcomeWin:
		entry.Wins++
	case models.OutcomeLoss:
		entry.Losses++
	case models.OutcomeDraw:
		entry.Draws++
	default:
		return errors.New("storage: unknown outcome kind")
	}
	entry.DisplayName = displayName
	entry.LastGameAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ensureEntryLocked(playerID, displayName string) *models.LeaderboardEntry {
	if entry, ok := s.leaderboard[playerID]; ok {
		return entry
	}
	entry := &models.LeaderboardEntry{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		DisplayName: displayName,
		Rating:      models.DefaultRating,
	}
	s.leaderboard[playerID] = entry
	return entry
}

func (s *MemoryStore) TopLeaderboard(limit int) ([]models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	entries := make([]models.LeaderboardEntry, 0, len(s.leaderboard))
	for _, entry := range s.leaderboard {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rating != entries[j].Rating {
			return entries[i].Rating > entries[j].Rating
		}
		return entries[i].Wins > entries[j].Wins
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
