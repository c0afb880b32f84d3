package services

import (
	"errors"

	"github.com/charlesng35/tenantcrm/internal/models"
)

var (
	// ErrSelfDeactivation blocks a member from removing their own membership.
	ErrSelfDeactivation = errors.New("member: cannot deactivate yourself")
	// ErrLastOwner blocks removing the only remaining owner of a workspace.
	ErrLastOwner = errors.New("member: workspace must keep at least one owner")
)

// WorkspaceContext is the tenant scope resolved for an authenticated identity.
type WorkspaceContext struct {
	UserID        string      `json:"user_id"`
	WorkspaceID   string      `json:"workspace_id"`
	WorkspaceName string      `json:"workspace_name"`
	WorkspaceSlug string      `json:"workspace_slug"`
	Role          models.Role `json:"role"`
}

// RequireRole fails with ErrUnauthorized unless the context has exactly role.
func RequireRole(wc *WorkspaceContext, role models.Role) error {
	if wc == nil || wc.UserID == "" || wc.WorkspaceID == "" || wc.Role != role {
		return ErrUnauthorized
	}
	return nil
}

// CheckDeactivation decides whether target may be removed by actingUserID given
// the workspace's current owner count. It performs no I/O.
func CheckDeactivation(target models.Membership, actingUserID string, ownerCount int64) error {
	if target.UserID == actingUserID {
		return ErrSelfDeactivation
	}
	if target.Role == models.RoleOwner && ownerCount <= 1 {
		return ErrLastOwner
	}
	return nil
}
