package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/auth"
	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/pkg/logger"
)

// WorkspaceSummary describes one membership of the current identity.
type WorkspaceSummary struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Slug     string      `json:"slug"`
	Role     models.Role `json:"role"`
	Selected bool        `json:"selected"`
}

// Preference is a signed workspace choice ready to be stored client side.
type Preference struct {
	Token     string
	ExpiresAt time.Time
}

// WorkspaceResolver determines which workspace an identity is acting in.
type WorkspaceResolver struct {
	db     *gorm.DB
	signer *auth.PreferenceSigner
	log    *zap.Logger
}

// NewWorkspaceResolver constructs a resolver. The signer is optional; without
// it the persisted selection and the oldest membership decide.
func NewWorkspaceResolver(db *gorm.DB, signer *auth.PreferenceSigner) (*WorkspaceResolver, error) {
	if db == nil {
		return nil, errors.New("workspace resolver: db is required")
	}
	return &WorkspaceResolver{
		db:     db,
		signer: signer,
		log:    logger.WithModule("workspace"),
	}, nil
}

// Resolve returns the workspace context for userID. The signed preference is
// tried first, then the persisted selection, then the oldest membership. A
// preference naming a workspace the user no longer belongs to is ignored. It
// returns (nil, nil) when the identity has no membership.
func (r *WorkspaceResolver) Resolve(ctx context.Context, userID, preferenceToken string) (*WorkspaceContext, error) {
	if userID == "" {
		return nil, nil
	}
	wc, err := r.resolve(r.db.WithContext(ctx), userID, preferenceToken)
	if err != nil {
		return nil, serverError(r.log, "resolve workspace", err, zap.String("user_id", userID))
	}
	return wc, nil
}

func (r *WorkspaceResolver) resolve(db *gorm.DB, userID, preferenceToken string) (*WorkspaceContext, error) {
	if r.signer != nil && preferenceToken != "" {
		if workspaceID := r.signer.WorkspaceFor(preferenceToken, userID); workspaceID != "" {
			wc, err := membershipContext(db, userID, workspaceID)
			if err != nil || wc != nil {
				return wc, err
			}
		}
	}

	var user models.User
	err := db.Select("id", "selected_workspace_id").Where("id = ?", userID).Take(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	if user.SelectedWorkspaceID != nil && *user.SelectedWorkspaceID != "" {
		wc, err := membershipContext(db, userID, *user.SelectedWorkspaceID)
		if err != nil || wc != nil {
			return wc, err
		}
	}

	return oldestMembershipContext(db, userID)
}

// SetCurrent switches the identity to workspaceID. The identity must be a
// member. The choice is persisted and a signed preference is returned.
func (r *WorkspaceResolver) SetCurrent(ctx context.Context, userID, workspaceID string) (*WorkspaceContext, *Preference, error) {
	if userID == "" {
		return nil, nil, ErrUnauthorized
	}

	db := r.db.WithContext(ctx)
	wc, err := membershipContext(db, userID, workspaceID)
	if err != nil {
		return nil, nil, serverError(r.log, "load membership", err, zap.String("user_id", userID))
	}
	if wc == nil {
		return nil, nil, ErrNotFound
	}

	if err := db.Model(&models.User{}).Where("id = ?", userID).
		Update("selected_workspace_id", workspaceID).Error; err != nil {
		return nil, nil, serverError(r.log, "persist workspace selection", err, zap.String("user_id", userID))
	}

	pref, err := r.sign(userID, workspaceID)
	if err != nil {
		return nil, nil, err
	}
	return wc, pref, nil
}

// ListForUser returns every workspace the identity belongs to, oldest first,
// marking the one currentWorkspaceID names.
func (r *WorkspaceResolver) ListForUser(ctx context.Context, userID, currentWorkspaceID string) ([]WorkspaceSummary, error) {
	var memberships []models.Membership
	err := r.db.WithContext(ctx).
		Preload("Workspace").
		Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, serverError(r.log, "list workspaces", err, zap.String("user_id", userID))
	}

	summaries := make([]WorkspaceSummary, 0, len(memberships))
	for _, m := range memberships {
		if m.Workspace == nil {
			continue
		}
		summaries = append(summaries, WorkspaceSummary{
			ID:       m.WorkspaceID,
			Name:     m.Workspace.Name,
			Slug:     m.Workspace.Slug,
			Role:     m.Role,
			Selected: m.WorkspaceID == currentWorkspaceID,
		})
	}
	return summaries, nil
}

// sign returns nil without error when no signer is configured.
func (r *WorkspaceResolver) sign(userID, workspaceID string) (*Preference, error) {
	if r.signer == nil {
		return nil, nil
	}
	token, expiresAt, err := r.signer.Sign(userID, workspaceID)
	if err != nil {
		return nil, serverError(r.log, "sign workspace preference", err, zap.String("user_id", userID))
	}
	return &Preference{Token: token, ExpiresAt: expiresAt}, nil
}

func membershipContext(db *gorm.DB, userID, workspaceID string) (*WorkspaceContext, error) {
	var membership models.Membership
	err := db.Preload("Workspace").
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Take(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return contextFromMembership(&membership), nil
}

func oldestMembershipContext(db *gorm.DB, userID string) (*WorkspaceContext, error) {
	var membership models.Membership
	err := db.Preload("Workspace").
		Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").
		Take(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return contextFromMembership(&membership), nil
}

func contextFromMembership(m *models.Membership) *WorkspaceContext {
	wc := &WorkspaceContext{
		UserID:      m.UserID,
		WorkspaceID: m.WorkspaceID,
		Role:        m.Role,
	}
	if m.Workspace != nil {
		wc.WorkspaceName = m.Workspace.Name
		wc.WorkspaceSlug = m.Workspace.Slug
	}
	return wc
}
