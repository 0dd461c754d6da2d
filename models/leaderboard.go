package models

import "time"

// DefaultRating is the rating assumed for a player with no leaderboard row yet.
const DefaultRating = 1000

// Outcome is how a resolved session counted for one player.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// LeaderboardEntry aggregates a player's results and Elo rating.
// Created lazily the first time a player finishes a session.
type LeaderboardEntry struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	PlayerID    string `gorm:"uniqueIndex;not null" json:"player_id"`
	DisplayName string `json:"display_name"`

	Wins   int `gorm:"default:0" json:"wins"`
	Losses int `gorm:"default:0" json:"losses"`
	Draws  int `gorm:"default:0" json:"draws"`
	Rating int `gorm:"default:1000" json:"rating"`

	LastGameAt time.Time `json:"last_game_at"`

	Timestamps
}
