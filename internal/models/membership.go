package models

// Role is a workspace-level role.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleMember
}

// Membership joins a user to a workspace. The (user, workspace) pair is unique.
type Membership struct {
	BaseModel

	UserID      string `gorm:"size:36;not null;uniqueIndex:idx_membership_user_workspace" json:"user_id"`
	WorkspaceID string `gorm:"size:36;not null;uniqueIndex:idx_membership_user_workspace;index" json:"workspace_id"`
	Role        Role   `gorm:"size:16;not null" json:"role"`

	User      *User      `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Workspace *Workspace `gorm:"constraint:OnDelete:CASCADE" json:"workspace,omitempty"`
}
