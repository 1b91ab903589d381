package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"casino-miniapp/internal/middleware"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/services"
)

type StaffHandler struct {
	staff *services.StaffService
}

func NewStaffHandler(staff *services.StaffService) *StaffHandler {
	return &StaffHandler{staff: staff}
}

// Get returns the pending queue, newest first.
func (h *StaffHandler) Get(c *gin.Context) {
	pending, err := h.staff.Pending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pending)
}

func (h *StaffHandler) Post(c *gin.Context) {
	staffID := c.GetInt64(middleware.ContextUserID)

	var req models.StaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	switch req.Action {
	case models.StaffActionProcess:
		decided, err := h.staff.Decide(c.Request.Context(), staffID, req.RequestID, req.Decision)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.StaffResponse{
			Success: true,
			Message: fmt.Sprintf("Request #%d %s", decided.ID, decided.Status),
		})

	case models.StaffActionManage:
		account, err := h.staff.ManageBalance(c.Request.Context(), staffID, req)
		if err != nil {
			respondError(c, err)
			return
		}
		currency := req.Currency
		if currency == "" {
			currency = models.PrimaryCurrency
		}
		c.JSON(http.StatusOK, models.StaffResponse{
			Success: true,
			Balance: models.FromMinor(account.BalanceOf(currency)),
			Message: fmt.Sprintf("%s balance updated", account.FullName),
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Unknown action"})
	}
}
