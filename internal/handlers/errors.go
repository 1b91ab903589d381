package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/models"
	"casino-miniapp/internal/services"
)

func statusFor(err error) int {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrRequestNotFound),
		errors.Is(err, services.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrNameTaken),
		errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrAlreadyProcessed),
		errors.Is(err, services.ErrRoundActive),
		errors.Is(err, services.ErrRoundFinished):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the failure envelope. Internal errors are logged and
// not echoed to the caller.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		msg = "Internal error"
	}
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Invalid request",
		"details": err.Error(),
	})
}
