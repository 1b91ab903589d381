package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casino-miniapp/internal/middleware"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/services"
)

type WalletHandler struct {
	wallet *services.WalletService
}

func NewWalletHandler(wallet *services.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// Get returns the balance pair, or the caller's request list with
// ?view=requests.
func (h *WalletHandler) Get(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	if c.Query("view") == "requests" {
		list, err := h.wallet.Requests(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
		return
	}

	balances, err := h.wallet.Balance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

func (h *WalletHandler) Post(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	var req models.WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	switch req.Action {
	case models.WalletActionRequest:
		stored, err := h.wallet.SubmitRequest(c.Request.Context(), userID, req.Type, req.Amount, req.Currency)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.WalletResponse{
			Success:   true,
			RequestID: stored.ID,
			Message:   "Request submitted",
		})

	case models.WalletActionExchange:
		balances, err := h.wallet.Exchange(c.Request.Context(), userID, req.Amount, req.FromCurrency, req.ToCurrency)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.WalletResponse{
			Success: true,
			Balance: &balances,
			Message: "Exchange completed",
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Unknown action"})
	}
}
