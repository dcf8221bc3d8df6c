package db

import "time"

type Submission struct {
	ID            uint      `gorm:"primaryKey"`
	RoundID       uint      `gorm:"index;not null;uniqueIndex:idx_submissions_round_player"`
	PlayerID      uint      `gorm:"index;not null;uniqueIndex:idx_submissions_round_player"`
	PositionIndex int       `gorm:"not null"`
	IsCorrect     bool      `gorm:"not null;default:false"`
	LatencyMs     float64   `gorm:"not null;default:0"`
	SubmittedAt   time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}
