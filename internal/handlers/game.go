package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"casino-miniapp/internal/middleware"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/services"
)

type GameHandler struct {
	gameEngine *services.GameEngine
}

func NewGameHandler(gameEngine *services.GameEngine) *GameHandler {
	return &GameHandler{gameEngine: gameEngine}
}

// Play dispatches on game_type and, for mines, on action.
func (h *GameHandler) Play(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	var req models.GameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	var (
		resp *models.GameResponse
		err  error
	)
	switch req.GameType {
	case models.GameTypeMines:
		switch req.Action {
		case "", models.MinesActionStart:
			resp, err = h.gameEngine.StartMines(ctx, userID, req.BetAmount, req.MinesCount)
		case models.MinesActionReveal:
			if req.Cell == nil {
				err = &models.ValidationError{Field: "cell", Reason: "required"}
				break
			}
			resp, err = h.gameEngine.RevealMines(ctx, userID, req.RoundID, *req.Cell)
		case models.MinesActionCashout:
			resp, err = h.gameEngine.CashoutMines(ctx, userID, req.RoundID, req.OpenedCells)
		default:
			err = &models.ValidationError{Field: "action", Reason: "must be start, reveal or cashout"}
		}
	case models.GameTypeRoulette:
		resp, err = h.gameEngine.SpinRoulette(ctx, userID, req.BetAmount)
	default:
		err = &models.ValidationError{Field: "game_type", Reason: "unknown game"}
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetActiveMines lets a client pick up a round it left open.
func (h *GameHandler) GetActiveMines(c *gin.Context) {
	resp, err := h.gameEngine.ActiveMines(c.Request.Context(), c.GetInt64(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GameHandler) GetGameHistory(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 || limit > services.MaxHistory {
		limit = 50
	}

	games, err := h.gameEngine.History(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"games":   games,
		"count":   len(games),
	})
}

func (h *GameHandler) GetVerificationData(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"server_hash": h.gameEngine.GetServerHash(),
			"user_id":     c.GetInt64(middleware.ContextUserID),
		},
	})
}
