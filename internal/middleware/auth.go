package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/ledger"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/services"
)

const (
	ContextUserID  = "user_id"
	ContextAccount = "account"
)

// Identity resolves the caller from X-User-Id. When tokens are enabled the
// X-Auth-Token must be valid and issued to the same account.
func Identity(jwtService *services.JWTService, store services.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader(ledger.HeaderUserID), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
			return
		}

		if jwtService.Enabled() {
			claims, err := jwtService.ValidateToken(c.GetHeader(ledger.HeaderAuthToken))
			if err != nil || claims.UserID != userID {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired session"})
				return
			}
			c.Set("session_id", claims.SessionID)
		}

		account, err := store.GetAccount(c.Request.Context(), userID)
		if errors.Is(err, services.ErrAccountNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Account not found"})
			return
		}
		if err != nil {
			log.WithError(err).WithField("account_id", userID).Error("Failed to load caller account")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal error"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextAccount, account)
		c.Next()
	}
}

// CurrentAccount returns the account set by Identity.
func CurrentAccount(c *gin.Context) *models.StoredAccount {
	account, _ := c.Get(ContextAccount)
	stored, _ := account.(*models.StoredAccount)
	return stored
}

func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := CurrentAccount(c)
		if account == nil || !account.IsStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": services.ErrForbidden.Error()})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware caps mutating requests per account and action.
func RateLimitMiddleware(store services.Store, action string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(ContextUserID)
		if userID == 0 || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		allowed, err := store.CheckRateLimit(c.Request.Context(), userID, action, limit, window)
		if err != nil || !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			return
		}

		c.Next()
	}
}
