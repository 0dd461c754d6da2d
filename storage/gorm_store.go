package storage

import (
	"errors"
	"time"

	"xo-arena/engine"
	"xo-arena/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the production Store backed by Postgres through GORM.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// Ensure *GormStore implements Store at compile time.
var _ Store = (*GormStore)(nil)

func (s *GormStore) LoadQueue() ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := s.DB.Order("joined_at ASC, created_at ASC").Find(&entries).Error
	return entries, err
}

func (s *GormStore) UpsertQueueEntry(entry models.QueueEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "origin", "joined_at", "updated_at"}),
	}).Create(&entry).Error
}

func (s *GormStore) RemoveQueueEntries(playerIDs []string) error {
	if len(playerIDs) == 0 {
		return nil
	}
	return s.DB.Where("player_id IN ?", playerIDs).Delete(&models.QueueEntry{}).Error
}

func (s *GormStore) HasQueueEntry(playerID string) (bool, error) {
	var n int64
	err := s.DB.Model(&models.QueueEntry{}).Where("player_id = ?", playerID).Count(&n).Error
	return n > 0, err
}

func (s *GormStore) HasActiveSession(playerID string) (bool, error) {
	var n int64
	err := s.DB.Model(&models.GameSession{}).
		Where("(player_x_id = ? OR player_o_id = ?) AND status = ?", playerID, playerID, models.SessionActive).
		Count(&n).Error
	return n > 0, err
}

func (s *GormStore) CreateSession(playerX, playerO PlayerRef, mode string) (string, error) {
	session := models.GameSession{
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
	if err := s.DB.Create(&session).Error; err != nil {
		return "", err
	}
	return session.ID, nil
}

func (s *GormStore) LoadSession(sessionID string) (*models.GameSession, error) {
	var session models.GameSession
	if err := s.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// SaveSessionState persists a new board/turn pair. Guarded on active status
// so a racing expiry can never resurrect a terminal session's board.
func (s *GormStore) SaveSessionState(sessionID, board, turn string) error {
	return s.DB.Model(&models.GameSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionActive).
		Updates(map[string]interface{}{"board": board, "turn": turn}).Error
}

func (s *GormStore) MarkSessionStatus(sessionID, status string) error {
	return s.DB.Model(&models.GameSession{}).
		Where("id = ?", sessionID).
		Update("status", status).Error
}

func (s *GormStore) ListActiveSessions() ([]SessionRef, error) {
	var refs []SessionRef
	err := s.DB.Model(&models.GameSession{}).
		Where("status = ?", models.SessionActive).
		Select("id, started_at").
		Scan(&refs).Error
	return refs, err
}

func (s *GormStore) CountActiveSessions() (int64, error) {
	var n int64
	err := s.DB.Model(&models.GameSession{}).Where("status = ?", models.SessionActive).Count(&n).Error
	return n, err
}

func (s *GormStore) CountActivePlayers() (int64, error) {
	var n int64
	err := s.DB.Raw(`
		SELECT COUNT(DISTINCT player_id) FROM (
			SELECT player_x_id AS player_id FROM game_sessions WHERE status = 'active' AND deleted_at IS NULL
			UNION
			SELECT player_o_id FROM game_sessions WHERE status = 'active' AND deleted_at IS NULL
		) AS active_players
	`).Scan(&n).Error
	return n, err
}

func (s *GormStore) LoadRating(playerID string) (int, error) {
	var entry models.LeaderboardEntry
	if err := s.DB.Where("player_id = ?", playerID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DefaultRating, nil
		}
		return 0, err
	}
	return entry.Rating, nil
}

func (s *GormStore) SaveRating(playerID, displayName string, rating int) error {
	entry := models.LeaderboardEntry{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		DisplayName: displayName,
		Rating:      rating,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "rating", "updated_at"}),
	}).Create(&entry).Error
}

// RecordOutcome bumps one of the win/loss/draw counters, creating the
// leaderboard row on first completion. Counters only ever increase.
func (s *GormStore) RecordOutcome(playerID, displayName string, outcome models.Outcome) error {
	var column string
	switch outcome {
	case models.OutcomeWin:
		column = "wins"
	case models.OutcomeLoss:
		column = "losses"
	case models.OutcomeDraw:
		column = "draws"
	default:
		return errors.New("storage: unknown outcome kind")
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		entry := models.LeaderboardEntry{
			ID:          uuid.NewString(),
			PlayerID:    playerID,
			DisplayName: displayName,
			Rating:      models.DefaultRating,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}},
			DoNothing: true,
		}).Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.LeaderboardEntry{}).
			Where("player_id = ?", playerID).
			Updates(map[string]interface{}{
				column:         gorm.Expr(column+" + 1"),
				"display_name": displayName,
				"last_game_at": time.Now().UTC(),
			}).Error
	})
}

func (s *GormStore) TopLeaderboard(limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var entries []models.LeaderboardEntry
	err := s.DB.Order("rating DESC, wins DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
