// Package games holds the client-side wager round state machines. Outcomes
// always come from the ledger; the client only tracks what it has been told.
package games

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"casino-miniapp/internal/models"
	"casino-miniapp/internal/session"
)

var (
	ErrRoundActive = errors.New("a round is already in progress")
	ErrNotActive   = errors.New("no active round")
)

type MinesAPI interface {
	StartMines(ctx context.Context, bet decimal.Decimal, mines int) (*models.GameResponse, error)
	RevealMines(ctx context.Context, roundID string, cell int) (*models.GameResponse, error)
	CashoutMines(ctx context.Context, roundID string, opened int) (*models.GameResponse, error)
	ActiveMines(ctx context.Context) (*models.GameResponse, error)
}

type RouletteAPI interface {
	SpinRoulette(ctx context.Context, bet decimal.Decimal) (*models.GameResponse, error)
}

func validateBet(sess *session.Session, bet decimal.Decimal) error {
	balances, err := sess.Balances()
	if err != nil {
		return err
	}
	return models.ValidateBet(bet, balances.Of(models.PrimaryCurrency))
}
