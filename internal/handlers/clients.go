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

// ClientHandler serves the clients of the current workspace and their activities.
type ClientHandler struct {
	clients    *services.ClientService
	activities *services.ActivityService
}

func NewClientHandler(clients *services.ClientService, activities *services.ActivityService) *ClientHandler {
	return &ClientHandler{clients: clients, activities: activities}
}

type clientRequest struct {
	Name    *string              `json:"name" validate:"omitempty,max=255"`
	Email   *string              `json:"email" validate:"omitempty,max=320"`
	Phone   *string              `json:"phone" validate:"omitempty,max=50"`
	Company *string              `json:"company" validate:"omitempty,max=255"`
	Status  *models.ClientStatus `json:"status"`
	Tags    []string             `json:"tags" validate:"omitempty,max=50,dive,max=50"`
	Note    *string              `json:"note"`
}

func (r clientRequest) input() services.ClientInput {
	return services.ClientInput{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Company: r.Company,
		Status:  r.Status,
		Tags:    r.Tags,
		Note:    r.Note,
	}
}

type activityRequest struct {
	Type       models.ActivityType `json:"type" validate:"required"`
	Content    string              `json:"content" validate:"required"`
	OccurredAt *time.Time          `json:"occurred_at"`
}

// GET /api/clients?search=&status=
func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.clients.List(requestContext(c), middleware.Workspace(c), services.ClientFilter{
		Search: c.Query("search"),
		Status: c.Query("status"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, clients, &response.Meta{Total: len(clients)})
}

// POST /api/clients
func (h *ClientHandler) Create(c *gin.Context) {
	var req clientRequest
	if !bindAndValidate(c, &req) {
		return
	}
	client, err := h.clients.Create(requestContext(c), middleware.Workspace(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, client)
}

// GET /api/clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.clients.Get(requestContext(c), middleware.Workspace(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, client)
}

// PATCH /api/clients/:id
func (h *ClientHandler) Update(c *gin.Context) {
	var req clientRequest
	if !bindAndValidate(c, &req) {
		return
	}
	client, err := h.clients.Update(requestContext(c), middleware.Workspace(c), c.Param("id"), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, client)
}

// DELETE /api/clients/:id
func (h *ClientHandler) Delete(c *gin.Context) {
	if err := h.clients.Delete(requestContext(c), middleware.Workspace(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/clients/:id/activities
func (h *ClientHandler) ListActivities(c *gin.Context) {
	activities, err := h.activities.ListForClient(requestContext(c), middleware.Workspace(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, activities, &response.Meta{Total: len(activities)})
}

// POST /api/clients/:id/activities
func (h *ClientHandler) CreateActivity(c *gin.Context) {
	var req activityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	in := services.ActivityInput{Type: req.Type, Content: req.Content}
	if req.OccurredAt != nil {
		in.OccurredAt = *req.OccurredAt
	}

	activity, err := h.activities.Create(requestContext(c), middleware.Workspace(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, activity)
}

// DELETE /api/activities/:id
func (h *ClientHandler) DeleteActivity(c *gin.Context) {
	if err := h.activities.Delete(requestContext(c), middleware.Workspace(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
