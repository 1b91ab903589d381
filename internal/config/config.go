// Package config loads the ledger server settings from the environment and
// the client settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"

	RevealModeServer  = "server"
	RevealModeExposed = "exposed"
)

// Config holds the ledger server configuration.
type Config struct {
	Port string
	Env  string // "development" or "production"

	Store     string // redis or memory
	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret  string
	SessionTTL time.Duration

	StartingBalanceRUB decimal.Decimal
	ExchangeRate       decimal.Decimal
	MinesRevealMode    string
	StaffNames         []string

	LogLevel log.Level
}

// Load reads the server configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               os.Getenv("PORT"),
		Env:                os.Getenv("APP_ENV"),
		Store:              os.Getenv("STORE"),
		RedisURL:           os.Getenv("REDIS_URL"),
		RedisPass:          os.Getenv("REDIS_PASSWORD"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SessionTTL:         24 * time.Hour,
		StartingBalanceRUB: decimal.NewFromInt(1000),
		ExchangeRate:       decimal.NewFromInt(95),
		MinesRevealMode:    os.Getenv("MINES_REVEAL_MODE"),
		LogLevel:           log.InfoLevel,
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.Store == "" {
		cfg.Store = StoreRedis
	}
	if cfg.Store != StoreRedis && cfg.Store != StoreMemory {
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StoreRedis, StoreMemory, cfg.Store)
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = "localhost:6379"
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		parsed, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %v", err)
		}
		cfg.RedisDB = parsed
	}
	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL: %v", err)
		}
		cfg.SessionTTL = parsed
	}
	if balance := os.Getenv("STARTING_BALANCE_RUB"); balance != "" {
		parsed, err := decimal.NewFromString(balance)
		if err != nil || parsed.IsNegative() {
			return nil, fmt.Errorf("invalid STARTING_BALANCE_RUB: %q", balance)
		}
		cfg.StartingBalanceRUB = parsed
	}
	if rate := os.Getenv("EXCHANGE_RATE"); rate != "" {
		parsed, err := decimal.NewFromString(rate)
		if err != nil || !parsed.IsPositive() {
			return nil, fmt.Errorf("invalid EXCHANGE_RATE: %q", rate)
		}
		cfg.ExchangeRate = parsed
	}
	if cfg.MinesRevealMode == "" {
		cfg.MinesRevealMode = RevealModeServer
	}
	if cfg.MinesRevealMode != RevealModeServer && cfg.MinesRevealMode != RevealModeExposed {
		return nil, fmt.Errorf("MINES_REVEAL_MODE must be %q or %q", RevealModeServer, RevealModeExposed)
	}
	if names := os.Getenv("STAFF_NAMES"); names != "" {
		for _, name := range strings.Split(names, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.StaffNames = append(cfg.StaffNames, name)
			}
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %v", err)
		}
		cfg.LogLevel = parsed
	}

	if cfg.Env == "production" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	return cfg, nil
}

// IsStaffName reports whether an account registered under name starts as staff.
func (c *Config) IsStaffName(name string) bool {
	for _, staff := range c.StaffNames {
		if strings.EqualFold(staff, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
