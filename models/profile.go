package models

import (
	"gorm.io/gorm"
)

// Profile is a registered player account. Login doubles as the in-game
// display name, so it is unique across the server.
type Profile struct {
	gorm.Model
	Login        string `gorm:"uniqueIndex;not null" json:"login"`
	Password     string `gorm:"not null" json:"-"` // sha256 hex digest
	Name         string `json:"name"`
	Image        string `json:"image"`
	Gender       string `json:"gender"`
	Mail         string `json:"mail"`
	TotalTime    int64  `gorm:"not null;default:0" json:"total_time"` // seconds in finished games
	SessionCount int    `gorm:"not null;default:0" json:"session_count"`
	WinCount     int    `gorm:"not null;default:0" json:"win_count"`
	LoseCount    int    `gorm:"not null;default:0" json:"lose_count"`
}
