package db

import "time"

type Game struct {
	ID           uint       `gorm:"primaryKey"`
	GameID       string     `gorm:"size:64;uniqueIndex;not null"`
	ShortCode    string     `gorm:"size:6;index"`
	Status       string     `gorm:"size:32;not null"`
	Mode         string     `gorm:"size:32;not null"`
	HostID       string     `gorm:"size:64;not null"`
	DeckSeed     int        `gorm:"not null"`
	TotalCards   int        `gorm:"not null;default:0"`
	MaxPlayers   int        `gorm:"not null;default:0"`
	PlayersCount int        `gorm:"not null;default:0"`
	AliveCount   int        `gorm:"not null;default:0"`
	StartsAt     *time.Time `gorm:""`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
	Players      []Player
	Rounds       []Round
	Events       []Event
}
