package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/pkg/logger"
)

const maxActivityContentLength = 10000

// ActivityInput describes an interaction to record. A zero OccurredAt means now.
type ActivityInput struct {
	Type       models.ActivityType
	Content    string
	OccurredAt time.Time
}

// ActivityService records interactions with clients.
type ActivityService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// NewActivityService constructs an ActivityService.
func NewActivityService(db *gorm.DB, clock func() time.Time) (*ActivityService, error) {
	if db == nil {
		return nil, errors.New("activity service: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &ActivityService{db: db, now: clock, log: logger.WithModule("activities")}, nil
}

// ListForClient returns a client's activities, newest first.
func (s *ActivityService) ListForClient(ctx context.Context, wc *WorkspaceContext, clientID string) ([]models.Activity, error) {
	if err := requireWorkspace(wc); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if _, err := clientInWorkspace(db, wc.WorkspaceID, clientID); err != nil {
		return nil, s.wrap("load client", err)
	}

	var activities []models.Activity
	if err := db.Where("workspace_id = ? AND client_id = ?", wc.WorkspaceID, clientID).
		Order("occurred_at DESC").
		Find(&activities).Error; err != nil {
		return nil, s.wrap("list activities", err)
	}
	return activities, nil
}

// Create records an activity on a client of the workspace.
func (s *ActivityService) Create(ctx context.Context, wc *WorkspaceContext, clientID string, in ActivityInput) (*models.Activity, error) {
	if err := requireWorkspace(wc); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, fieldError("type", "Type must be NOTE, CALL, EMAIL or MEETING")
	}
	content := strings.TrimSpace(in.Content)
	switch {
	case content == "":
		return nil, fieldError("content", "Content is required")
	case utf8.RuneCountInString(content) > maxActivityContentLength:
		return nil, fieldError("content", fmt.Sprintf("Content must be at most %d characters", maxActivityContentLength))
	}

	db := s.db.WithContext(ctx)
	if _, err := clientInWorkspace(db, wc.WorkspaceID, clientID); err != nil {
		return nil, s.wrap("load client", err)
	}

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	activity := &models.Activity{
		WorkspaceID:     wc.WorkspaceID,
		ClientID:        clientID,
		Type:            in.Type,
		Content:         content,
		OccurredAt:      occurredAt.UTC(),
		CreatedByUserID: wc.UserID,
	}
	if err := db.Create(activity).Error; err != nil {
		return nil, s.wrap("create activity", err)
	}
	return activity, nil
}

// Delete removes an activity of the workspace.
func (s *ActivityService) Delete(ctx context.Context, wc *WorkspaceContext, id string) error {
	if err := requireWorkspace(wc); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", id, wc.WorkspaceID).
		Delete(&models.Activity{})
	if result.Error != nil {
		return s.wrap("delete activity", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ActivityService) wrap(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return serverError(s.log, op, err)
}
