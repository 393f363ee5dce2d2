package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionToken records an issued credential so stale ones can be swept.
type SessionToken struct {
	gorm.Model
	Login     string    `gorm:"index;not null"`
	Token     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
