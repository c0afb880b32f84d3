package models

import "time"

// PasswordResetToken stores the digest of a single-use reset secret.
type PasswordResetToken struct {
	BaseModel

	UserID    string     `gorm:"size:36;not null;index" json:"user_id"`
	TokenHash string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time  `gorm:"index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// UsableAt reports whether the token is unused and unexpired at now.
func (t *PasswordResetToken) UsableAt(now time.Time) bool {
	return t.UsedAt == nil && !now.After(t.ExpiresAt)
}
