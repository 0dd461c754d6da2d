package models

import "time"

// QueueEntry is a player's pending request to be matched.
// One row per player; re-joining the queue replaces the prior entry.
type QueueEntry struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	PlayerID    string    `gorm:"uniqueIndex;not null" json:"player_id"`
	DisplayName string    `json:"display_name"`
	Origin      string    `json:"origin,omitempty"` // transport context the join came from (e.g. channel id)
	JoinedAt    time.Time `gorm:"index;not null" json:"joined_at"`

	Timestamps
}
