package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/tenantcrm/internal/middleware"
	"github.com/charlesng35/tenantcrm/internal/services"
	"github.com/charlesng35/tenantcrm/pkg/response"
)

const resetRequestedMessage = "If an account exists for this email, a reset link is on its way."

// PasswordHandler exposes the forgotten-password and change-password flows.
type PasswordHandler struct {
	passwords *services.PasswordService
}

func NewPasswordHandler(passwords *services.PasswordService) *PasswordHandler {
	return &PasswordHandler{passwords: passwords}
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type forgotPasswordResponse struct {
	Message string               `json:"message"`
	Debug   *services.ResetDebug `json:"debug,omitempty"`
}

// POST /api/auth/password/forgot
//
// The response is the same whether or not the email belongs to an account.
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	outcome, err := h.passwords.RequestReset(requestContext(c), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, forgotPasswordResponse{
		Message: resetRequestedMessage,
		Debug:   outcome.Debug,
	})
}

// POST /api/auth/password/reset
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.Password != req.ConfirmPassword {
		passwordMismatch(c, "confirm_password")
		return
	}

	if err := h.passwords.PerformReset(requestContext(c), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Your password has been reset. You can now sign in."})
}

// POST /api/auth/password/change
func (h *PasswordHandler) Change(c *gin.Context) {
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		passwordMismatch(c, "confirm_password")
		return
	}

	err := h.passwords.ChangePassword(requestContext(c), middleware.UserID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Your password has been changed."})
}
