package models

// Workspace is a tenant. Every CRM record carries its WorkspaceID.
type Workspace struct {
	BaseModel

	Name string `gorm:"size:100;not null" json:"name"`
	Slug string `gorm:"uniqueIndex;size:64;not null" json:"slug"`

	Memberships []Membership `gorm:"foreignKey:WorkspaceID" json:"-"`
}
