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

// FollowUpHandler serves dated reminders of the current workspace.
type FollowUpHandler struct {
	followUps *services.FollowUpService
}

func NewFollowUpHandler(followUps *services.FollowUpService) *FollowUpHandler {
	return &FollowUpHandler{followUps: followUps}
}

type createFollowUpRequest struct {
	ClientID string    `json:"client_id" validate:"required"`
	Reason   string    `json:"reason" validate:"required,max=500"`
	DueDate  time.Time `json:"due_date" validate:"required"`
}

type updateFollowUpRequest struct {
	Reason  *string                `json:"reason" validate:"omitempty,max=500"`
	DueDate *time.Time             `json:"due_date"`
	Status  *models.FollowUpStatus `json:"status"`
}

// GET /api/followups?client_id=
func (h *FollowUpHandler) List(c *gin.Context) {
	followUps, err := h.followUps.List(requestContext(c), middleware.Workspace(c), c.Query("client_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, followUps, &response.Meta{Total: len(followUps)})
}

// POST /api/followups
func (h *FollowUpHandler) Create(c *gin.Context) {
	var req createFollowUpRequest
	if !bindAndValidate(c, &req) {
		return
	}
	reason := req.Reason
	followUp, err := h.followUps.Create(requestContext(c), middleware.Workspace(c), req.ClientID, services.FollowUpInput{
		Reason:  &reason,
		DueDate: req.DueDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, followUp)
}

// PATCH /api/followups/:id
func (h *FollowUpHandler) Update(c *gin.Context) {
	var req updateFollowUpRequest
	if !bindAndValidate(c, &req) {
		return
	}
	in := services.FollowUpInput{Reason: req.Reason, Status: req.Status}
	if req.DueDate != nil {
		in.DueDate = *req.DueDate
	}

	followUp, err := h.followUps.Update(requestContext(c), middleware.Workspace(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, followUp)
}

// POST /api/followups/:id/toggle
func (h *FollowUpHandler) Toggle(c *gin.Context) {
	followUp, err := h.followUps.Toggle(requestContext(c), middleware.Workspace(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, followUp)
}

// DELETE /api/followups/:id
func (h *FollowUpHandler) Delete(c *gin.Context) {
	if err := h.followUps.Delete(requestContext(c), middleware.Workspace(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
