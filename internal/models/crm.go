package models

import (
	"time"

	"gorm.io/datatypes"
)

// ClientStatus tracks where a client sits in the pipeline.
type ClientStatus string

const (
	ClientProspect ClientStatus = "PROSPECT"
	ClientActive   ClientStatus = "ACTIVE"
	ClientInactive ClientStatus = "INACTIVE"
)

// ActivityType classifies an interaction with a client.
type ActivityType string

const (
	ActivityNote    ActivityType = "NOTE"
	ActivityCall    ActivityType = "CALL"
	ActivityEmail   ActivityType = "EMAIL"
	ActivityMeeting ActivityType = "MEETING"
)

// FollowUpStatus tracks reminder completion.
type FollowUpStatus string

const (
	FollowUpOpen FollowUpStatus = "OPEN"
	FollowUpDone FollowUpStatus = "DONE"
)

// Client is a customer record owned by a workspace.
type Client struct {
	BaseModel

	WorkspaceID     string                      `gorm:"size:36;not null;index" json:"workspace_id"`
	Name            string                      `gorm:"size:255;not null" json:"name"`
	Email           *string                     `gorm:"size:320" json:"email,omitempty"`
	Phone           *string                     `gorm:"size:50" json:"phone,omitempty"`
	Company         *string                     `gorm:"size:255" json:"company,omitempty"`
	Status          ClientStatus                `gorm:"size:16;not null;index" json:"status"`
	Tags            datatypes.JSONSlice[string] `json:"tags"`
	Note            *string                     `gorm:"type:text" json:"note,omitempty"`
	CreatedByUserID string                      `gorm:"size:36;not null" json:"created_by_user_id"`

	Workspace *Workspace `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Activity records an interaction with a client.
type Activity struct {
	BaseModel

	WorkspaceID     string       `gorm:"size:36;not null;index" json:"workspace_id"`
	ClientID        string       `gorm:"size:36;not null;index" json:"client_id"`
	Type            ActivityType `gorm:"size:16;not null" json:"type"`
	Content         string       `gorm:"type:text;not null" json:"content"`
	OccurredAt      time.Time    `gorm:"index" json:"occurred_at"`
	CreatedByUserID string       `gorm:"size:36;not null" json:"created_by_user_id"`

	Client *Client `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// FollowUp is a dated reminder attached to a client.
type FollowUp struct {
	BaseModel

	WorkspaceID     string         `gorm:"size:36;not null;index" json:"workspace_id"`
	ClientID        string         `gorm:"size:36;not null;index" json:"client_id"`
	Reason          string         `gorm:"size:500;not null" json:"reason"`
	DueDate         time.Time      `gorm:"index" json:"due_date"`
	Status          FollowUpStatus `gorm:"size:16;not null;index" json:"status"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CreatedByUserID string         `gorm:"size:36;not null" json:"created_by_user_id"`

	Client *Client `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Valid reports whether s is a known client status.
func (s ClientStatus) Valid() bool {
	return s == ClientProspect || s == ClientActive || s == ClientInactive
}

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityNote, ActivityCall, ActivityEmail, ActivityMeeting:
		return true
	}
	return false
}

// Valid reports whether s is a known follow-up status.
func (s FollowUpStatus) Valid() bool {
	return s == FollowUpOpen || s == FollowUpDone
}
