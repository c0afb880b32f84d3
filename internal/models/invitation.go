package models

import "time"

// InvitationStatus is the effective state of an invitation at a point in time.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationRevoked  InvitationStatus = "REVOKED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// Invitation grants a role in a workspace to whoever redeems its token. Only
// the SHA-256 digest of the token is stored.
type Invitation struct {
	BaseModel

	WorkspaceID      string     `gorm:"size:36;not null;index" json:"workspace_id"`
	TokenHash        string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Role             Role       `gorm:"size:16;not null" json:"role"`
	CreatedByUserID  string     `gorm:"size:36;not null" json:"created_by_user_id"`
	ExpiresAt        time.Time  `gorm:"index" json:"expires_at"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	AcceptedByUserID *string    `gorm:"size:36" json:"accepted_by_user_id,omitempty"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`

	Workspace *Workspace `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// StatusAt classifies the invitation. Revocation wins over acceptance, and
// both win over expiry, which is never stored.
func (i *Invitation) StatusAt(now time.Time) InvitationStatus {
	switch {
	case i.RevokedAt != nil:
		return InvitationRevoked
	case i.AcceptedAt != nil:
		return InvitationAccepted
	case now.After(i.ExpiresAt):
		return InvitationExpired
	default:
		return InvitationPending
	}
}
