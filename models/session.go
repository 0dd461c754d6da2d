package models

import "time"

// Session lifecycle. Both terminal states are final; nothing transitions out of them.
const (
	SessionActive   = "active"
	SessionFinished = "finished"
	SessionExpired  = "expired"
)

const (
	ModeCasual = "casual"
	ModeRanked = "ranked"
)

const (
	TurnX = "X"
	TurnO = "O"
)

// GameSession records a single two-player match (user vs user).
// The board is stored as a 9-char string over '-', 'X', 'O', row-major.
type GameSession struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	PlayerXID   string `gorm:"index;not null" json:"player_x_id"`
	PlayerOID   string `gorm:"index;not null" json:"player_o_id"`
	PlayerXName string `json:"player_x_name"`
	PlayerOName string `json:"player_o_name"`

	Board  string `gorm:"type:varchar(9);not null" json:"board"`
	Turn   string `gorm:"type:varchar(1);not null" json:"turn"`
	Status string `gorm:"type:varchar(16);index;not null;check:status IN ('active','finished','expired')" json:"status"`
	Mode   string `gorm:"type:varchar(16);not null;default:'casual'" json:"mode"`

	StartedAt time.Time `gorm:"index;not null" json:"started_at"`

	Timestamps
}
