package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"casino-miniapp/internal/middleware"
	"casino-miniapp/internal/services"
)

// Services are the ledger components the routes are served from.
type Services struct {
	Store  services.Store
	JWT    *services.JWTService
	Auth   *services.AuthService
	Wallet *services.WalletService
	Games  *services.GameEngine
	Staff  *services.StaffService
}

// NewRouter mounts the four endpoint groups: /auth, /wallet, /games, /staff.
func NewRouter(svc Services) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.CORS())

	userHandler := NewUserHandler(svc.Auth)
	walletHandler := NewWalletHandler(svc.Wallet)
	gameHandler := NewGameHandler(svc.Games)
	staffHandler := NewStaffHandler(svc.Staff)

	router.POST("/auth", userHandler.Authenticate)

	protected := router.Group("")
	protected.Use(middleware.Identity(svc.JWT, svc.Store))
	{
		protected.GET("/auth", userHandler.GetCurrentUser)

		wallet := protected.Group("/wallet")
		wallet.Use(middleware.RateLimitMiddleware(svc.Store, "wallet", services.DefaultRateLimitWallet, time.Minute))
		{
			wallet.GET("", walletHandler.Get)
			wallet.POST("", walletHandler.Post)
		}

		games := protected.Group("/games")
		{
			games.POST("", gameHandler.Play)
			games.GET("", gameHandler.GetGameHistory)
			games.GET("/active", gameHandler.GetActiveMines)
			games.GET("/verification", gameHandler.GetVerificationData)
		}

		staff := protected.Group("/staff")
		staff.Use(middleware.RequireStaff())
		{
			staff.GET("", staffHandler.Get)
			staff.POST("", staffHandler.Post)
		}
	}

	return router
}
