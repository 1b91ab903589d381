package services

import (
	"context"
	"errors"
	"time"

	"casino-miniapp/internal/models"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrNameTaken         = errors.New("an account with this name already exists")
	ErrBadCredentials    = errors.New("wrong name or PIN")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRequestNotFound   = errors.New("request not found")
	ErrAlreadyProcessed  = errors.New("request already processed")
	ErrRoundNotFound     = errors.New("round not found")
	ErrRoundActive       = errors.New("a mines round is already in progress")
	ErrRoundFinished     = errors.New("round already finished")
	ErrRateLimited       = errors.New("too many requests, please wait")
	ErrForbidden         = errors.New("access denied")
)

// Store is the ledger's persistence. Every balance change goes through an
// operation that checks and applies it in one atomic step.
type Store interface {
	CreateAccount(ctx context.Context, account *models.StoredAccount) error
	GetAccount(ctx context.Context, id int64) (*models.StoredAccount, error)
	GetAccountByName(ctx context.Context, fullName string) (*models.StoredAccount, error)
	Move(ctx context.Context, userID int64, m models.Movement) (*models.StoredAccount, error)
	NextNonce(ctx context.Context, userID int64) (int64, error)

	CreateRequest(ctx context.Context, req *models.StoredRequest) error
	GetRequest(ctx context.Context, id int64) (*models.StoredRequest, error)
	UserRequests(ctx context.Context, userID int64) ([]*models.StoredRequest, error)
	PendingRequests(ctx context.Context) ([]*models.StoredRequest, error)
	// DecideRequest sets the status and, for an approval, applies the amount
	// to the requester's balance in the same step.
	DecideRequest(ctx context.Context, id int64, decision models.Decision, staffID int64, at time.Time) (*models.StoredRequest, error)

	// OpenRound debits the bet and registers the round as the account's
	// active one. It fails with ErrRoundActive if one already exists.
	OpenRound(ctx context.Context, round *models.MinesRound) (*models.StoredAccount, error)
	GetRound(ctx context.Context, id string) (*models.MinesRound, error)
	ActiveRound(ctx context.Context, userID int64) (*models.MinesRound, error)
	// UpdateRound saves a still-active round.
	UpdateRound(ctx context.Context, round *models.MinesRound) error
	// SettleRound records a finished round and credits payout, only if the
	// stored round is still active.
	SettleRound(ctx context.Context, round *models.MinesRound, payout int64) (*models.StoredAccount, error)
	StaleRounds(ctx context.Context, before time.Time) ([]*models.MinesRound, error)

	RecordGame(ctx context.Context, record *models.GameRecord) error
	GameHistory(ctx context.Context, userID int64, limit int64) ([]*models.GameRecord, error)

	CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error)
	Close() error
}
