package db

import (
	"time"

	"gorm.io/datatypes"
)

type Round struct {
	ID              uint           `gorm:"primaryKey"`
	GameID          uint           `gorm:"index;not null;uniqueIndex:idx_rounds_game_number"`
	Number          int            `gorm:"not null;uniqueIndex:idx_rounds_game_number"`
	CardID          string         `gorm:"size:64;not null"`
	CardIndex       int            `gorm:"not null"`
	Resolved        bool           `gorm:"not null;default:false"`
	CorrectPosition int            `gorm:"not null;default:-1"`
	TimelineBefore  datatypes.JSON `gorm:"type:jsonb;not null"`
	RoundStartsAt   time.Time      `gorm:"not null"`
	RoundEndsAt     time.Time      `gorm:"not null"`
	CreatedAt       time.Time      `gorm:"not null"`
	UpdatedAt       time.Time      `gorm:"not null"`
	Submissions     []Submission
}
