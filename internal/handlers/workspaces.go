package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/tenantcrm/internal/middleware"
	"github.com/charlesng35/tenantcrm/internal/services"
	"github.com/charlesng35/tenantcrm/pkg/response"
)

// WorkspaceHandler lists the caller's workspaces and switches between them.
type WorkspaceHandler struct {
	resolver *services.WorkspaceResolver
	cookies  CookieSettings
	now      func() time.Time
}

func NewWorkspaceHandler(resolver *services.WorkspaceResolver, cookies CookieSettings) *WorkspaceHandler {
	return &WorkspaceHandler{resolver: resolver, cookies: cookies, now: time.Now}
}

type switchWorkspaceRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
}

// GET /api/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	ctx := requestContext(c)
	userID := middleware.UserID(c)

	preference, _ := c.Cookie(middleware.PreferenceCookie)
	current, err := h.resolver.Resolve(ctx, userID, preference)
	if err != nil {
		respondError(c, err)
		return
	}
	currentID := ""
	if current != nil {
		currentID = current.WorkspaceID
	}

	workspaces, err := h.resolver.ListForUser(ctx, userID, currentID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, workspaces, &response.Meta{Total: len(workspaces)})
}

// POST /api/workspaces/current
func (h *WorkspaceHandler) Switch(c *gin.Context) {
	var req switchWorkspaceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	wc, pref, err := h.resolver.SetCurrent(requestContext(c), middleware.UserID(c), req.WorkspaceID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.cookies.writePreference(c, pref, h.now())
	response.Success(c, http.StatusOK, toWorkspaceDTO(wc))
}

// GET /api/workspace
func (h *WorkspaceHandler) Current(c *gin.Context) {
	response.Success(c, http.StatusOK, toWorkspaceDTO(middleware.Workspace(c)))
}
