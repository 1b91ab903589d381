package games_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"casino-miniapp/internal/models"
	"casino-miniapp/internal/session"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) StartMines(ctx context.Context, bet decimal.Decimal, mines int) (*models.GameResponse, error) {
	args := m.Called(ctx, bet, mines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameResponse), args.Error(1)
}

func (m *MockLedger) RevealMines(ctx context.Context, roundID string, cell int) (*models.GameResponse, error) {
	args := m.Called(ctx, roundID, cell)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameResponse), args.Error(1)
}

func (m *MockLedger) CashoutMines(ctx context.Context, roundID string, opened int) (*models.GameResponse, error) {
	args := m.Called(ctx, roundID, opened)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameResponse), args.Error(1)
}

func (m *MockLedger) ActiveMines(ctx context.Context) (*models.GameResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameResponse), args.Error(1)
}

func (m *MockLedger) SpinRoulette(ctx context.Context, bet decimal.Decimal) (*models.GameResponse, error) {
	args := m.Called(ctx, bet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GameResponse), args.Error(1)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decEq matches a decimal argument by value.
func decEq(s string) any {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func newSession(t *testing.T, rub, usd string) *session.Session {
	t.Helper()
	sess := session.New(session.NewFileStore(t.TempDir()))
	require.NoError(t, sess.Login(context.Background(), models.Account{
		ID:         1,
		FullName:   "Ivan",
		BalanceRUB: dec(rub),
		BalanceUSD: dec(usd),
	}))
	return sess
}

func balances(t *testing.T, sess *session.Session) models.Balances {
	t.Helper()
	b, err := sess.Balances()
	require.NoError(t, err)
	return b
}
