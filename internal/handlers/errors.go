package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/tenantcrm/internal/services"
	appErrors "github.com/charlesng35/tenantcrm/pkg/errors"
	"github.com/charlesng35/tenantcrm/pkg/response"
)

var (
	errInvitationInvalid = appErrors.New("INVITATION_INVALID", "This invitation link is not valid", http.StatusBadRequest)
	errInvitationRevoked = appErrors.New("INVITATION_REVOKED", "This invitation has been revoked", http.StatusBadRequest)
	errInvitationUsed    = appErrors.New("INVITATION_USED", "This invitation has already been used", http.StatusBadRequest)
	errInvitationExpired = appErrors.New("INVITATION_EXPIRED", "This invitation has expired", http.StatusBadRequest)
	errEmailTaken        = appErrors.ErrConflict.WithMessage("An account with this email already exists")
	errNoPasswordSet     = appErrors.NewBadRequest("This account signs in with an external provider and has no password")
)

// respondError renders a service error. Anything unrecognised becomes a 500
// with the generic message; the cause was already logged by the service.
func respondError(c *gin.Context, err error) {
	var field *services.FieldError
	if errors.As(err, &field) {
		response.ValidationFailed(c, field.Message, map[string]string{field.Field: field.Message})
		return
	}

	switch {
	case errors.Is(err, services.ErrUnauthorized):
		response.Error(c, appErrors.ErrForbidden)
	case errors.Is(err, services.ErrNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrNoWorkspace):
		response.Error(c, appErrors.ErrNoWorkspace)
	case errors.Is(err, services.ErrRateLimited):
		response.Error(c, appErrors.ErrRateLimit)
	case errors.Is(err, services.ErrEmailTaken):
		response.Error(c, errEmailTaken)
	case errors.Is(err, services.ErrInvalidCredentials):
		response.Error(c, appErrors.ErrInvalidCredentials)
	case errors.Is(err, services.ErrTokenInvalid):
		response.Error(c, appErrors.ErrTokenInvalid)
	case errors.Is(err, services.ErrNoPasswordSet):
		response.Error(c, errNoPasswordSet)
	case errors.Is(err, services.ErrWrongPassword):
		message := "Current password is incorrect"
		response.ValidationFailed(c, message, map[string]string{"current_password": message})
	case errors.Is(err, services.ErrSelfDeactivation):
		response.Error(c, appErrors.NewBadRequest("You cannot remove yourself from the workspace"))
	case errors.Is(err, services.ErrLastOwner):
		response.Error(c, appErrors.NewBadRequest("A workspace must keep at least one owner"))
	case errors.Is(err, services.ErrInvitationInvalid):
		response.Error(c, errInvitationInvalid)
	case errors.Is(err, services.ErrInvitationRevoked):
		response.Error(c, errInvitationRevoked)
	case errors.Is(err, services.ErrInvitationUsed):
		response.Error(c, errInvitationUsed)
	case errors.Is(err, services.ErrInvitationExpired):
		response.Error(c, errInvitationExpired)
	default:
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
	}
}
