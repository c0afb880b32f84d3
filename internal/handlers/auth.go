package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/tenantcrm/internal/middleware"
	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/internal/services"
	appErrors "github.com/charlesng35/tenantcrm/pkg/errors"
	"github.com/charlesng35/tenantcrm/pkg/response"
)

// AuthHandler manages signup, login and the profile of the current identity.
type AuthHandler struct {
	accounts *services.AccountService
	cookies  CookieSettings
	now      func() time.Time
}

func NewAuthHandler(accounts *services.AccountService, cookies CookieSettings) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookies: cookies, now: time.Now}
}

type signupRequest struct {
	Name            string `json:"name" validate:"omitempty,max=100"`
	Email           string `json:"email" validate:"required,email,max=320"`
	Password        string `json:"password" validate:"required,min=6,max=100"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	WorkspaceName   string `json:"workspace_name" validate:"omitempty,max=100"`
	InviteToken     string `json:"invite_token"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userDTO struct {
	ID                  string  `json:"id"`
	Email               string  `json:"email"`
	Name                *string `json:"name,omitempty"`
	HasPassword         bool    `json:"has_password"`
	SelectedWorkspaceID *string `json:"selected_workspace_id,omitempty"`
}

type workspaceDTO struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Slug string      `json:"slug"`
	Role models.Role `json:"role"`
}

type sessionResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int           `json:"expires_in"`
	User        userDTO       `json:"user"`
	Workspace   *workspaceDTO `json:"workspace"`
}

func toUserDTO(user *models.User) userDTO {
	return userDTO{
		ID:                  user.ID,
		Email:               user.Email,
		Name:                user.Name,
		HasPassword:         user.HasPassword(),
		SelectedWorkspaceID: user.SelectedWorkspaceID,
	}
}

func toWorkspaceDTO(wc *services.WorkspaceContext) *workspaceDTO {
	if wc == nil {
		return nil
	}
	return &workspaceDTO{ID: wc.WorkspaceID, Name: wc.WorkspaceName, Slug: wc.WorkspaceSlug, Role: wc.Role}
}

// POST /api/auth/signup
//
// With invite_token the account joins the inviting workspace instead of
// creating its own.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.Password != req.ConfirmPassword {
		passwordMismatch(c, "confirm_password")
		return
	}

	ctx := requestContext(c)
	var (
		grant *services.SessionGrant
		err   error
	)
	if token := strings.TrimSpace(req.InviteToken); token != "" {
		grant, err = h.accounts.SignupWithInvite(ctx, services.JoinInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Token:    token,
		})
	} else {
		grant, err = h.accounts.Signup(ctx, services.SignupInput{
			WorkspaceName: req.WorkspaceName,
			Name:          req.Name,
			Email:         req.Email,
			Password:      req.Password,
		})
	}
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSession(c, http.StatusCreated, grant)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	grant, err := h.accounts.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, grant)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.accounts.Me(requestContext(c), middleware.UserID(c))
	if errors.Is(err, services.ErrUnauthorized) {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserDTO(user))
}

func (h *AuthHandler) respondSession(c *gin.Context, status int, grant *services.SessionGrant) {
	h.cookies.writePreference(c, grant.Preference, h.now())
	response.Success(c, status, sessionResponse{
		AccessToken: grant.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(grant.ExpiresIn.Seconds()),
		User:        toUserDTO(grant.User),
		Workspace:   toWorkspaceDTO(grant.Workspace),
	})
}

func passwordMismatch(c *gin.Context, field string) {
	message := "Passwords do not match"
	response.ValidationFailed(c, message, map[string]string{field: message})
}
