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

const maxFollowUpReasonLength = 500

// FollowUpInput carries follow-up fields. On update nil pointers and a zero
// DueDate leave the stored values untouched.
type FollowUpInput struct {
	Reason  *string
	DueDate time.Time
	Status  *models.FollowUpStatus
}

// FollowUpService manages dated reminders on clients.
type FollowUpService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// NewFollowUpService constructs a FollowUpService.
func NewFollowUpService(db *gorm.DB, clock func() time.Time) (*FollowUpService, error) {
	if db == nil {
		return nil, errors.New("follow-up service: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &FollowUpService{db: db, now: clock, log: logger.WithModule("followups")}, nil
}

// List returns the workspace's follow-ups by due date, optionally limited to
// one client.
func (s *FollowUpService) List(ctx context.Context, wc *WorkspaceContext, clientID string) ([]models.FollowUp, error) {
	if err := requireWorkspace(wc); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	query := db.Preload("Client").Where("workspace_id = ?", wc.WorkspaceID)
	if clientID != "" {
		if _, err := clientInWorkspace(db, wc.WorkspaceID, clientID); err != nil {
			return nil, s.wrap("load client", err)
		}
		query = query.Where("client_id = ?", clientID)
	}

	var followUps []models.FollowUp
	if err := query.Order("due_date ASC").Find(&followUps).Error; err != nil {
		return nil, s.wrap("list follow-ups", err)
	}
	return followUps, nil
}

// Create schedules a follow-up on a client of the workspace.
func (s *FollowUpService) Create(ctx context.Context, wc *WorkspaceContext, clientID string, in FollowUpInput) (*models.FollowUp, error) {
	if err := requireWorkspace(wc); err != nil {
		return nil, err
	}
	if in.Reason == nil {
		return nil, fieldError("reason", "Reason is required")
	}
	if in.DueDate.IsZero() {
		return nil, fieldError("due_date", "Due date is required")
	}

	followUp := &models.FollowUp{
		WorkspaceID:     wc.WorkspaceID,
		ClientID:        clientID,
		Status:          models.FollowUpOpen,
		CreatedByUserID: wc.UserID,
	}
	if err := s.apply(followUp, in); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if _, err := clientInWorkspace(db, wc.WorkspaceID, clientID); err != nil {
		return nil, s.wrap("load client", err)
	}
	if err := db.Create(followUp).Error; err != nil {
		return nil, s.wrap("create follow-up", err)
	}
	return followUp, nil
}

// Update changes the supplied fields of a follow-up.
func (s *FollowUpService) Update(ctx context.Context, wc *WorkspaceContext, id string, in FollowUpInput) (*models.FollowUp, error) {
	if err := requireWorkspace(wc); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	followUp, err := followUpInWorkspace(db, wc.WorkspaceID, id)
	if err != nil {
		return nil, s.wrap("load follow-up", err)
	}
	if err := s.apply(followUp, in); err != nil {
		return nil, err
	}
	if err := db.Omit("Client").Save(followUp).Error; err != nil {
		return nil, s.wrap("update follow-up", err)
	}
	return followUp, nil
}

// Toggle flips a follow-up between OPEN and DONE.
func (s *FollowUpService) Toggle(ctx context.Context, wc *WorkspaceContext, id string) (*models.FollowUp, error) {
	if err := requireWorkspace(wc); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	followUp, err := followUpInWorkspace(db, wc.WorkspaceID, id)
	if err != nil {
		return nil, s.wrap("load follow-up", err)
	}
	next := models.FollowUpDone
	if followUp.Status == models.FollowUpDone {
		next = models.FollowUpOpen
	}
	s.setStatus(followUp, next)
	if err := db.Omit("Client").Save(followUp).Error; err != nil {
		return nil, s.wrap("toggle follow-up", err)
	}
	return followUp, nil
}

// Delete removes a follow-up of the workspace.
func (s *FollowUpService) Delete(ctx context.Context, wc *WorkspaceContext, id string) error {
	if err := requireWorkspace(wc); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", id, wc.WorkspaceID).
		Delete(&models.FollowUp{})
	if result.Error != nil {
		return s.wrap("delete follow-up", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *FollowUpService) apply(followUp *models.FollowUp, in FollowUpInput) error {
	if in.Reason != nil {
		reason := strings.TrimSpace(*in.Reason)
		switch {
		case reason == "":
			return fieldError("reason", "Reason is required")
		case utf8.RuneCountInString(reason) > maxFollowUpReasonLength:
			return fieldError("reason", fmt.Sprintf("Reason must be at most %d characters", maxFollowUpReasonLength))
		}
		followUp.Reason = reason
	}
	if !in.DueDate.IsZero() {
		followUp.DueDate = in.DueDate.UTC()
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return fieldError("status", "Status must be OPEN or DONE")
		}
		s.setStatus(followUp, *in.Status)
	}
	return nil
}

func (s *FollowUpService) setStatus(followUp *models.FollowUp, status models.FollowUpStatus) {
	if followUp.Status == status {
		return
	}
	followUp.Status = status
	if status == models.FollowUpDone {
		completed := s.now().UTC()
		followUp.CompletedAt = &completed
	} else {
		followUp.CompletedAt = nil
	}
}

func (s *FollowUpService) wrap(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return serverError(s.log, op, err)
}

func followUpInWorkspace(db *gorm.DB, workspaceID, id string) (*models.FollowUp, error) {
	var followUp models.FollowUp
	err := db.Where("id = ? AND workspace_id = ?", id, workspaceID).Take(&followUp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &followUp, nil
}
