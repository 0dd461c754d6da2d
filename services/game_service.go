package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"

	"xo-arena/engine"
	"xo-arena/models"
	"xo-arena/storage"
)

// RejectReason classifies expected, recoverable validation failures.
// These are results reported to the caller, never fatal errors.
type RejectReason string

const (
	RejectSessionNotActive RejectReason = "session_not_active"
	RejectInvalidIndex     RejectReason = "invalid_index"
	RejectCellOccupied     RejectReason = "cell_occupied"
	RejectNotYourTurn      RejectReason = "not_your_turn"
	RejectNotParticipant   RejectReason = "not_participant"
)

// MoveResult is the typed outcome of SubmitMove or Forfeit.
type MoveResult struct {
	Accepted bool           `json:"accepted"`
	Reason   RejectReason   `json:"reason,omitempty"`
	Board    string         `json:"board,omitempty"`
	Turn     string         `json:"turn,omitempty"`
	Finished bool           `json:"finished"`
	Verdict  engine.Verdict `json:"verdict,omitempty"`
}

// ErrSessionNotFound is returned when no session exists for the given id.
var ErrSessionNotFound = errors.New("session not found")

// GameService owns the session state machine: creation, move arbitration,
// terminal detection, forfeits, and forced expiry. Each session has its own
// mutex, so moves within one session serialize in arrival order while
// unrelated games never block each other.
type GameService struct {
	store   storage.Store
	ratings *RatingService
	bus     *EventBus

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// coinFlip decides which player gets X; injectable for tests.
	coinFlip func() bool
}

func NewGameService(store storage.Store, ratings *RatingService, bus *EventBus) *GameService {
	return &GameService{
		store:    store,
		ratings:  ratings,
		bus:      bus,
		locks:    make(map[string]*sync.Mutex),
		coinFlip: func() bool { return rand.Intn(2) == 0 },
	}
}

func (s *GameService) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// dropLock forgets a terminal session's mutex. A goroutine still waiting on
// the old mutex observes the terminal status on load and rejects, so the
// stale handle is harmless.
func (s *GameService) dropLock(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, sessionID)
}

// CreateSession starts a match between two distinct players, assigning X/O
// by an unbiased coin flip. X always moves first.
func (s *GameService) CreateSession(p1, p2 storage.PlayerRef, mode string) (string, error) {
	if p1.ID == p2.ID {
		return "", fmt.Errorf("session with identical players %q refused", p1.ID)
	}
	if mode != models.ModeRanked {
		mode = models.ModeCasual
	}

	playerX, playerO := p1, p2
	if s.coinFlip() {
		playerX, playerO = p2, p1
	}

	sessionID, err := s.store.CreateSession(playerX, playerO, mode)
	if err != nil {
		return "", err
	}

	s.bus.Publish(Event{
		Kind:      EventMatchFormed,
		SessionID: sessionID,
		PlayerX:   playerX.ID,
		PlayerO:   playerO.ID,
		Board:     engine.EmptyBoard,
		Turn:      models.TurnX,
	})
	log.Printf("[Game] session %s formed: X=%s O=%s mode=%s", sessionID, playerX.ID, playerO.ID, mode)
	return sessionID, nil
}

// Snapshot returns the current state of a session.
func (s *GameService) Snapshot(sessionID string) (*models.GameSession, error) {
	session, err := s.store.LoadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// SubmitMove arbitrates one move. Validation order: session active, index in
// range, cell empty, caller holds the turn. A rejected move changes nothing.
func (s *GameService) SubmitMove(sessionID, playerID string, cell int) (*MoveResult, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadChecked(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return &MoveResult{Reason: RejectSessionNotActive}, nil
	}
	if cell < 0 || cell >= engine.BoardSize {
		return &MoveResult{Reason: RejectInvalidIndex}, nil
	}
	if session.Board[cell] != engine.CellEmpty {
		return &MoveResult{Reason: RejectCellOccupied}, nil
	}

	mover, mark := session.PlayerXID, engine.MarkX
	if session.Turn == models.TurnO {
		mover, mark = session.PlayerOID, engine.MarkO
	}
	if playerID != mover {
		return &MoveResult{Reason: RejectNotYourTurn}, nil
	}

	board := []byte(session.Board)
	board[cell] = mark
	session.Board = string(board)

	if verdict := engine.Evaluate(session.Board); verdict != engine.VerdictNone {
		if err := s.finishLocked(session, verdict); err != nil {
			return nil, err
		}
		return &MoveResult{Accepted: true, Board: session.Board, Finished: true, Verdict: verdict}, nil
	}

	next := models.TurnO
	if session.Turn == models.TurnO {
		next = models.TurnX
	}
	if err := s.store.SaveSessionState(sessionID, session.Board, next); err != nil {
		return nil, err
	}
	s.bus.Publish(Event{Kind: EventMoveApplied, SessionID: sessionID, Board: session.Board, Turn: next})
	return &MoveResult{Accepted: true, Board: session.Board, Turn: next}, nil
}

// Forfeit resolves an active session as a loss for the caller and a win for
// the opponent, through the same finalization path as a played-out win.
func (s *GameService) Forfeit(sessionID, playerID string) (*MoveResult, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadChecked(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return &MoveResult{Reason: RejectSessionNotActive}, nil
	}

	var verdict engine.Verdict
	switch playerID {
	case session.PlayerXID:
		verdict = engine.VerdictO
	case session.PlayerOID:
		verdict = engine.VerdictX
	default:
		return &MoveResult{Reason: RejectNotParticipant}, nil
	}

	if err := s.finishLocked(session, verdict); err != nil {
		return nil, err
	}
	return &MoveResult{Accepted: true, Board: session.Board, Finished: true, Verdict: verdict}, nil
}

// ForceExpire transitions an active session to expired. Used only by the
// timeout supervisor. Returns false without error when the session is
// already terminal, which is how a session that completed between being
// listed and being expired gets skipped. Expiry is record-neutral: no
// rating change and no win/loss/draw increment.
func (s *GameService) ForceExpire(sessionID string) (bool, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadChecked(sessionID)
	if err != nil {
		return false, err
	}
	if session.Status != models.SessionActive {
		return false, nil
	}
	if err := s.store.MarkSessionStatus(sessionID, models.SessionExpired); err != nil {
		return false, err
	}
	s.dropLock(sessionID)
	s.bus.Publish(Event{Kind: EventGameExpired, SessionID: sessionID, Board: session.Board})
	log.Printf("[Game] session %s expired by supervisor", sessionID)
	return true, nil
}

// loadChecked loads a session and refuses invariant-violating state instead
// of silently repairing it.
func (s *GameService) loadChecked(sessionID string) (*models.GameSession, error) {
	session, err := s.store.LoadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.PlayerXID == session.PlayerOID {
		log.Printf("[Game] session %s has identical players %q, refusing", sessionID, session.PlayerXID)
		return nil, fmt.Errorf("session %s violates player invariant", sessionID)
	}
	if len(session.Board) != engine.BoardSize {
		log.Printf("[Game] session %s has malformed board %q, refusing", sessionID, session.Board)
		return nil, fmt.Errorf("session %s violates board invariant", sessionID)
	}
	return session, nil
}

// finishLocked resolves an active session exactly once: persist the terminal
// board, flip status, apply the rating pair, and announce the outcome.
// Callers hold the session lock and have already verified active status.
func (s *GameService) finishLocked(session *models.GameSession, verdict engine.Verdict) error {
	if err := s.store.SaveSessionState(session.ID, session.Board, session.Turn); err != nil {
		return err
	}
	if err := s.store.MarkSessionStatus(session.ID, models.SessionFinished); err != nil {
		return err
	}
	s.dropLock(session.ID)

	playerX := storage.PlayerRef{ID: session.PlayerXID, DisplayName: session.PlayerXName}
	playerO := storage.PlayerRef{ID: session.PlayerOID, DisplayName: session.PlayerOName}

	var err error
	switch verdict {
	case engine.VerdictX:
		_, _, err = s.ratings.ApplyResult(playerX, playerO)
	case engine.VerdictO:
		_, _, err = s.ratings.ApplyResult(playerO, playerX)
	case engine.VerdictDraw:
		_, _, err = s.ratings.ApplyDraw(playerX, playerO)
	}
	if err != nil {
		return fmt.Errorf("session %s finished but rating update failed: %w", session.ID, err)
	}

	s.bus.Publish(Event{
		Kind:      EventGameEnded,
		SessionID: session.ID,
		PlayerX:   session.PlayerXID,
		PlayerO:   session.PlayerOID,
		Board:     session.Board,
		Verdict:   string(verdict),
	})
	log.Printf("[Game] session %s finished: %s", session.ID, verdict)
	return nil
}
