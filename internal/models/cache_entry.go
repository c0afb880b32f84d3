package models

import (
	"time"
)

// CacheEntry is one windowed counter of the database-backed rate limit store.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Counter   int64     `gorm:"not null;default:0"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
