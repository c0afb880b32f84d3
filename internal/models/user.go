package models

import "strings"

// User is an identity. PasswordHash is nil for accounts that authenticate
// through an external provider only.
type User struct {
	BaseModel

	Email               string  `gorm:"uniqueIndex;size:320;not null" json:"email"`
	Name                *string `gorm:"size:100" json:"name,omitempty"`
	PasswordHash        *string `gorm:"size:255" json:"-"`
	SelectedWorkspaceID *string `gorm:"size:36;index" json:"selected_workspace_id,omitempty"`

	SelectedWorkspace *Workspace   `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	Memberships       []Membership `gorm:"foreignKey:UserID" json:"-"`
}

// HasPassword reports whether the account can authenticate with a local password.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && *u.PasswordHash != ""
}

// DisplayName returns the name when present, otherwise the email.
func (u *User) DisplayName() string {
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		return *u.Name
	}
	return u.Email
}

// NormalizeEmail lowercases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
