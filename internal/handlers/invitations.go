package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/tenantcrm/internal/middleware"
	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/internal/services"
	"github.com/charlesng35/tenantcrm/pkg/response"
)

// InvitationHandler exposes the invitation lifecycle.
type InvitationHandler struct {
	invitations *services.InvitationService
	cookies     CookieSettings
	now         func() time.Time
}

func NewInvitationHandler(invitations *services.InvitationService, cookies CookieSettings) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, cookies: cookies, now: time.Now}
}

type createInvitationRequest struct {
	Role models.Role `json:"role" validate:"omitempty,oneof=OWNER MEMBER"`
}

type acceptInvitationResponse struct {
	WorkspaceID   string `json:"workspace_id"`
	AlreadyMember bool   `json:"already_member"`
}

// GET /api/invitations/:token
//
// Unusable tokens are not an error here: the outcome says why.
func (h *InvitationHandler) Validate(c *gin.Context) {
	check, err := h.invitations.Validate(requestContext(c), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, check)
}

// POST /api/invitations/:token/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	result, err := h.invitations.Accept(requestContext(c), c.Param("token"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.cookies.writePreference(c, result.Preference, h.now())
	response.Success(c, http.StatusOK, acceptInvitationResponse{
		WorkspaceID:   result.WorkspaceID,
		AlreadyMember: result.AlreadyMember,
	})
}

// GET /api/workspace/invitations
func (h *InvitationHandler) List(c *gin.Context) {
	invitations, err := h.invitations.List(requestContext(c), middleware.Workspace(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, invitations, &response.Meta{Total: len(invitations)})
}

// POST /api/workspace/invitations
//
// The raw token only ever leaves the server inside the returned link.
func (h *InvitationHandler) Create(c *gin.Context) {
	var req createInvitationRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}

	generated, err := h.invitations.Generate(requestContext(c), middleware.Workspace(c), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, generated)
}

// DELETE /api/workspace/invitations/:id
func (h *InvitationHandler) Revoke(c *gin.Context) {
	if err := h.invitations.Revoke(requestContext(c), middleware.Workspace(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
