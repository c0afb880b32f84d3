package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/tenantcrm/internal/middleware"
	"github.com/charlesng35/tenantcrm/internal/services"
	"github.com/charlesng35/tenantcrm/pkg/response"
)

// MemberHandler lists and removes workspace members.
type MemberHandler struct {
	members *services.MemberService
}

func NewMemberHandler(members *services.MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

// GET /api/workspace/members
func (h *MemberHandler) List(c *gin.Context) {
	members, err := h.members.List(requestContext(c), middleware.Workspace(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, members, &response.Meta{Total: len(members)})
}

// DELETE /api/workspace/members/:id
func (h *MemberHandler) Deactivate(c *gin.Context) {
	if err := h.members.Deactivate(requestContext(c), middleware.Workspace(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
