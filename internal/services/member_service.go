package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/pkg/logger"
)

// MemberView is a membership as shown on the members page.
type MemberView struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Email     string      `json:"email"`
	Name      *string     `json:"name,omitempty"`
	Role      models.Role `json:"role"`
	JoinedAt  time.Time   `json:"joined_at"`
	IsCurrent bool        `json:"is_current_user"`
}

// MemberService lists and removes workspace memberships.
type MemberService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewMemberService constructs a MemberService.
func NewMemberService(db *gorm.DB) (*MemberService, error) {
	if db == nil {
		return nil, errors.New("member service: db is required")
	}
	return &MemberService{db: db, log: logger.WithModule("members")}, nil
}

// List returns the members of the caller's workspace, owners first.
func (s *MemberService) List(ctx context.Context, wc *WorkspaceContext) ([]MemberView, error) {
	if wc == nil || wc.WorkspaceID == "" {
		return nil, ErrUnauthorized
	}

	var memberships []models.Membership
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("workspace_id = ?", wc.WorkspaceID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "role"}, Desc: true}).
		Order("created_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, serverError(s.log, "list members", err, zap.String("workspace_id", wc.WorkspaceID))
	}

	views := make([]MemberView, 0, len(memberships))
	for _, m := range memberships {
		view := MemberView{
			ID:        m.ID,
			UserID:    m.UserID,
			Role:      m.Role,
			JoinedAt:  m.CreatedAt,
			IsCurrent: m.UserID == wc.UserID,
		}
		if m.User != nil {
			view.Email = m.User.Email
			view.Name = m.User.Name
		}
		views = append(views, view)
	}
	return views, nil
}

// Deactivate removes a membership from the caller's workspace. The acting
// role, the self check and the owner count are all evaluated inside the
// transaction that deletes the row, with the workspace's owner rows locked, so
// two owners removing each other cannot leave the workspace ownerless.
func (s *MemberService) Deactivate(ctx context.Context, wc *WorkspaceContext, membershipID string) error {
	if err := RequireRole(wc, models.RoleOwner); err != nil {
		return err
	}

	var removedUserID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners []models.Membership
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("workspace_id = ? AND role = ?", wc.WorkspaceID, models.RoleOwner).
			Find(&owners).Error; err != nil {
			return err
		}
		if !containsUser(owners, wc.UserID) {
			return ErrUnauthorized
		}

		var target models.Membership
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND workspace_id = ?", membershipID, wc.WorkspaceID).
			Take(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := CheckDeactivation(target, wc.UserID, int64(len(owners))); err != nil {
			return err
		}

		if err := tx.Delete(&models.Membership{}, "id = ?", target.ID).Error; err != nil {
			return err
		}
		removedUserID = target.UserID
		return repointSelection(tx, target.UserID, wc.WorkspaceID)
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrSelfDeactivation), errors.Is(err, ErrLastOwner):
		return err
	default:
		return serverError(s.log, "deactivate member", err, zap.String("membership_id", membershipID))
	}

	s.log.Info("member deactivated",
		zap.String("workspace_id", wc.WorkspaceID),
		zap.String("removed_user_id", removedUserID),
		zap.String("acting_user_id", wc.UserID),
	)
	return nil
}

// repointSelection moves a removed user's selected workspace to their oldest
// remaining membership, or clears it.
func repointSelection(tx *gorm.DB, userID, removedWorkspaceID string) error {
	var user models.User
	if err := tx.Select("id", "selected_workspace_id").Where("id = ?", userID).Take(&user).Error; err != nil {
		return err
	}
	if user.SelectedWorkspaceID == nil || *user.SelectedWorkspaceID != removedWorkspaceID {
		return nil
	}

	var next *string
	var other models.Membership
	err := tx.Where("user_id = ?", userID).Order("created_at ASC").Order("id ASC").Take(&other).Error
	switch {
	case err == nil:
		next = &other.WorkspaceID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	return tx.Model(&models.User{}).Where("id = ?", userID).Update("selected_workspace_id", next).Error
}

func containsUser(memberships []models.Membership, userID string) bool {
	for _, m := range memberships {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
