package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionSnapshot is the last-known member card cached for reload continuity.
// It is never a source of truth; every resume revalidates it against the gateway.
type SessionSnapshot struct {
	SessionID     string    `gorm:"primaryKey;size:64" json:"session_id"`
	Email         string    `gorm:"size:255;index" json:"email"`
	DisplayName   string    `gorm:"size:255" json:"display_name"`
	StampCount    int       `json:"stamp_count"`
	PrizesClaimed string    `gorm:"type:text" json:"prizes_claimed"` // JSON array
	SavedAt       time.Time `json:"saved_at"`
	ExpiresAt     time.Time `gorm:"index" json:"expires_at"`
}

// TableName pins the table name.
func (SessionSnapshot) TableName() string { return "session_snapshots" }

// BeforeSave refreshes SavedAt when the caller left it unset.
func (s *SessionSnapshot) BeforeSave(tx *gorm.DB) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	return nil
}
