package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"casino-miniapp/internal/config"
	"casino-miniapp/internal/models"
)

type AuthService struct {
	store Store
	jwt   *JWTService
	cfg   *config.Config
}

func NewAuthService(store Store, jwtService *JWTService, cfg *config.Config) *AuthService {
	return &AuthService{store: store, jwt: jwtService, cfg: cfg}
}

// Register creates an account with the configured starting balance.
func (s *AuthService) Register(ctx context.Context, fullName, pin string) (*models.Account, string, error) {
	fullName = strings.TrimSpace(fullName)
	if err := models.ValidateCredentials(fullName, pin); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash pin: %v", err)
	}

	stored := &models.StoredAccount{
		FullName:   fullName,
		PinHash:    string(hash),
		IsStaff:    s.cfg.IsStaffName(fullName),
		BalanceRUB: models.ToMinor(s.cfg.StartingBalanceRUB),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, stored); err != nil {
		return nil, "", err
	}

	log.WithFields(log.Fields{
		"account_id": stored.ID,
		"is_staff":   stored.IsStaff,
	}).Info("Account registered")

	return s.issue(stored)
}

func (s *AuthService) Login(ctx context.Context, fullName, pin string) (*models.Account, string, error) {
	fullName = strings.TrimSpace(fullName)
	if err := models.ValidateCredentials(fullName, pin); err != nil {
		return nil, "", err
	}

	stored, err := s.store.GetAccountByName(ctx, fullName)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, "", ErrBadCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(stored.PinHash), []byte(pin)); err != nil {
		log.WithField("account_id", stored.ID).Warn("Failed login attempt")
		return nil, "", ErrBadCredentials
	}

	return s.issue(stored)
}

func (s *AuthService) issue(stored *models.StoredAccount) (*models.Account, string, error) {
	token, err := s.jwt.GenerateToken(stored.ID)
	if err != nil {
		return nil, "", err
	}
	account := stored.Account()
	return &account, token, nil
}
