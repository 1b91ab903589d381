package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"casino-miniapp/internal/middleware"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/services"
)

type UserHandler struct {
	auth *services.AuthService
}

func NewUserHandler(auth *services.AuthService) *UserHandler {
	return &UserHandler{auth: auth}
}

// Authenticate handles both login and registration.
func (h *UserHandler) Authenticate(c *gin.Context) {
	var req models.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var (
		account *models.Account
		token   string
		message string
		err     error
	)
	switch req.Action {
	case models.AuthLogin:
		account, token, err = h.auth.Login(c.Request.Context(), req.FullName, req.PinCode)
		if err == nil {
			message = fmt.Sprintf("Welcome back, %s", account.FullName)
		}
	case models.AuthRegister:
		account, token, err = h.auth.Register(c.Request.Context(), req.FullName, req.PinCode)
		if err == nil {
			message = fmt.Sprintf("Welcome, %s", account.FullName)
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Unknown action"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Success: true,
		User:    account,
		Token:   token,
		Message: message,
	})
}

// GetCurrentUser returns the caller's account with fresh balances.
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	account := middleware.CurrentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "User not authenticated"})
		return
	}

	view := account.Account()
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, User: &view})
}
