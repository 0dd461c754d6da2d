package services

import (
	"math"
	"sync"

	"xo-arena/models"
	"xo-arena/storage"
)

// DefaultKFactor is the Elo sensitivity constant used when none is configured.
const DefaultKFactor = 32

// RatingService applies the pairwise Elo update after a resolved session.
// The two rating writes for one outcome are made atomic with respect to
// other rating operations by holding both players' rating locks, always
// acquired in ascending player-id order.
type RatingService struct {
	store storage.Store
	k     int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRatingService(store storage.Store, k int) *RatingService {
	if k <= 0 {
		k = DefaultKFactor
	}
	return &RatingService{
		store: store,
		k:     k,
		locks: make(map[string]*sync.Mutex),
	}
}

// expectedScore is the standard Elo expectation for a against b.
func expectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

func (s *RatingService) playerLock(playerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[playerID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[playerID] = lock
	}
	return lock
}

// lockPair takes both players' rating locks in ascending id order so two
// overlapping updates touching the same players can never deadlock.
func (s *RatingService) lockPair(a, b string) func() {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	firstLock, secondLock := s.playerLock(first), s.playerLock(second)
	firstLock.Lock()
	secondLock.Lock()
	return func() {
		secondLock.Unlock()
		firstLock.Unlock()
	}
}

// ApplyResult rates a decisive outcome and records one win/loss pair.
// Returns the new winner and loser ratings.
func (s *RatingService) ApplyResult(winner, loser storage.PlayerRef) (int, int, error) {
	unlock := s.lockPair(winner.ID, loser.ID)
	defer unlock()

	winnerRating, err := s.store.LoadRating(winner.ID)
	if err != nil {
		return 0, 0, err
	}
	loserRating, err := s.store.LoadRating(loser.ID)
	if err != nil {
		return 0, 0, err
	}

	expected := expectedScore(winnerRating, loserRating)
	newWinner := winnerRating + int(math.Round(float64(s.k)*(1-expected)))
	newLoser := loserRating + int(math.Round(float64(s.k)*(0-(1-expected))))

	if err := s.store.SaveRating(winner.ID, winner.DisplayName, newWinner); err != nil {
		return 0, 0, err
	}
	if err := s.store.SaveRating(loser.ID, loser.DisplayName, newLoser); err != nil {
		return 0, 0, err
	}
	if err := s.store.RecordOutcome(winner.ID, winner.DisplayName, models.OutcomeWin); err != nil {
		return 0, 0, err
	}
	if err := s.store.RecordOutcome(loser.ID, loser.DisplayName, models.OutcomeLoss); err != nil {
		return 0, 0, err
	}
	return newWinner, newLoser, nil
}

// ApplyDraw rates a drawn outcome (S = 0.5 for both sides).
func (s *RatingService) ApplyDraw(a, b storage.PlayerRef) (int, int, error) {
	unlock := s.lockPair(a.ID, b.ID)
	defer unlock()

	ratingA, err := s.store.LoadRating(a.ID)
	if err != nil {
		return 0, 0, err
	}
	ratingB, err := s.store.LoadRating(b.ID)
	if err != nil {
		return 0, 0, err
	}

	expectedA := expectedScore(ratingA, ratingB)
	newA := ratingA + int(math.Round(float64(s.k)*(0.5-expectedA)))
	newB := ratingB + int(math.Round(float64(s.k)*(0.5-(1-expectedA))))

	if err := s.store.SaveRating(a.ID, a.DisplayName, newA); err != nil {
		return 0, 0, err
	}
	if err := s.store.SaveRating(b.ID, b.DisplayName, newB); err != nil {
		return 0, 0, err
	}
	if err := s.store.RecordOutcome(a.ID, a.DisplayName, models.OutcomeDraw); err != nil {
		return 0, 0, err
	}
	if err := s.store.RecordOutcome(b.ID, b.DisplayName, models.OutcomeDraw); err != nil {
		return 0, 0, err
	}
	return newA, newB, nil
}
