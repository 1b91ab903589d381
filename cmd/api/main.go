package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/config"
	"casino-miniapp/internal/handlers"
	"casino-miniapp/internal/services"
)

const (
	cleanupInterval = 5 * time.Minute
	staleRoundAge   = 30 * time.Minute
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	var store services.Store
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("Using in-memory ledger store, balances are lost on restart")
		store = services.NewMemoryStore()
	default:
		redisStore, err := services.NewRedisStore(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		store = redisStore
	}
	defer store.Close()

	jwtService := services.NewJWTService(cfg)
	if !jwtService.Enabled() {
		log.Warn("JWT_SECRET not set, session tokens are disabled")
	}

	gameEngine := services.NewGameEngine(store, cfg)

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			gameEngine.CleanupStaleGames(context.Background(), staleRoundAge)
		}
	}()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.Services{
		Store:  store,
		JWT:    jwtService,
		Auth:   services.NewAuthService(store, jwtService, cfg),
		Wallet: services.NewWalletService(store, cfg.ExchangeRate),
		Games:  gameEngine,
		Staff:  services.NewStaffService(store),
	})

	log.WithFields(log.Fields{
		"port":        cfg.Port,
		"store":       cfg.Store,
		"reveal_mode": cfg.MinesRevealMode,
	}).Info("Ledger server starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
