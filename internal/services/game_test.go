package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-miniapp/internal/config"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/services"
)

const testSeed = "test-server-seed"

func setupEngine(t *testing.T, mode string) (*services.GameEngine, services.Store, *models.StoredAccount) {
	t.Helper()
	store := services.NewMemoryStore()
	engine := services.NewGameEngine(store, newTestConfig(mode))
	engine.RotateServerSeed(testSeed)
	return engine, store, createAccount(t, store, 1000)
}

func safeCells(mines []int, n int) []int {
	mined := make(map[int]bool, len(mines))
	for _, m := range mines {
		mined[m] = true
	}
	var cells []int
	for c := 0; c < models.MinesGridSize && len(cells) < n; c++ {
		if !mined[c] {
			cells = append(cells, c)
		}
	}
	return cells
}

func TestVerifyMines(t *testing.T) {
	mines := services.VerifyMines(testSeed, 1, 1, 5)
	require.Len(t, mines, 5)
	assert.Equal(t, mines, services.VerifyMines(testSeed, 1, 1, 5))
	assert.IsIncreasing(t, mines)
	for _, m := range mines {
		assert.True(t, m >= 0 && m < models.MinesGridSize)
	}

	assert.Len(t, services.VerifyMines(testSeed, 1, 2, 10), 10)
}

func TestGameEngineMinesCashout(t *testing.T) {
	engine, store, account := setupEngine(t, config.RevealModeServer)
	ctx := context.Background()

	start, err := engine.StartMines(ctx, account.ID, decimal.NewFromInt(100), 3)
	require.NoError(t, err)
	assert.NotEmpty(t, start.RoundID)
	assert.Empty(t, start.Mines, "layout must stay on the server")
	assert.Equal(t, "900", start.Balance.String())

	mines := services.VerifyMines(testSeed, account.ID, 1, 3)
	cells := safeCells(mines, 2)

	first, err := engine.RevealMines(ctx, account.ID, start.RoundID, cells[0])
	require.NoError(t, err)
	assert.False(t, first.Mine)
	assert.Equal(t, "1.09", first.Multiplier.String())

	second, err := engine.RevealMines(ctx, account.ID, start.RoundID, cells[1])
	require.NoError(t, err)
	assert.Equal(t, "1.18", second.Multiplier.String())

	again, err := engine.RevealMines(ctx, account.ID, start.RoundID, cells[1])
	require.NoError(t, err)
	assert.Equal(t, "1.18", again.Multiplier.String())

	cash, err := engine.CashoutMines(ctx, account.ID, start.RoundID, 2)
	require.NoError(t, err)
	assert.Equal(t, "118.00", cash.Payout.StringFixed(2))
	assert.Equal(t, "1018", cash.Balance.String())
	assert.Equal(t, mines, cash.Mines)

	_, err = engine.CashoutMines(ctx, account.ID, start.RoundID, 2)
	assert.ErrorIs(t, err, services.ErrRoundFinished)
	assert.Equal(t, "1018", balanceOf(t, store, account.ID).RUB.String())

	history, err := engine.History(ctx, account.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "win", history[0].Result)
}

func TestGameEngineMineHit(t *testing.T) {
	engine, store, account := setupEngine(t, config.RevealModeServer)
	ctx := context.Background()

	start, err := engine.StartMines(ctx, account.ID, decimal.NewFromInt(100), 3)
	require.NoError(t, err)
	mines := services.VerifyMines(testSeed, account.ID, 1, 3)

	hit, err := engine.RevealMines(ctx, account.ID, start.RoundID, mines[0])
	require.NoError(t, err)
	assert.True(t, hit.Mine)
	assert.Equal(t, mines, hit.Mines)

	_, err = engine.RevealMines(ctx, account.ID, start.RoundID, safeCells(mines, 1)[0])
	assert.ErrorIs(t, err, services.ErrRoundFinished)
	_, err = engine.CashoutMines(ctx, account.ID, start.RoundID, 0)
	assert.ErrorIs(t, err, services.ErrRoundFinished)

	assert.Equal(t, "900", balanceOf(t, store, account.ID).RUB.String())
	active, err := store.ActiveRound(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestGameEngineOneRoundAtATime(t *testing.T) {
	engine, store, account := setupEngine(t, config.RevealModeServer)
	ctx := context.Background()

	_, err := engine.StartMines(ctx, account.ID, decimal.NewFromInt(100), 3)
	require.NoError(t, err)

	_, err = engine.StartMines(ctx, account.ID, decimal.NewFromInt(100), 3)
	assert.ErrorIs(t, err, services.ErrRoundActive)
	assert.Equal(t, "900", balanceOf(t, store, account.ID).RUB.String())
}

func TestGameEngineActiveMines(t *testing.T) {
	engine, _, account := setupEngine(t, config.RevealModeServer)
	ctx := context.Background()

	none, err := engine.ActiveMines(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, none.Round)

	start, err := engine.StartMines(ctx, account.ID, decimal.NewFromInt(100), 3)
	require.NoError(t, err)
	cell := safeCells(services.VerifyMines(testSeed, account.ID, 1, 3), 1)[0]
	_, err = engine.RevealMines(ctx, account.ID, start.RoundID, cell)
	require.NoError(t, err)

	open, err := engine.ActiveMines(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, open.Round)
	assert.Equal(t, start.RoundID, open.Round.RoundID)
	assert.Equal(t, "100", open.Round.BetAmount.String())
	assert.Equal(t, 3, open.Round.MinesCount)
	assert.Equal(t, []int{cell}, open.Round.Revealed)
	assert.Empty(t, open.Round.Mines, "layout must stay on the server")
	assert.Equal(t, "1.09", open.Multiplier.String())

	_, err = engine.CashoutMines(ctx, account.ID, start.RoundID, 1)
	require.NoError(t, err)
	after, err := engine.ActiveMines(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, after.Round)
}

func TestGameEngineExposedMode(t *testing.T) {
	engine, _, account := setupEngine(t, config.RevealModeExposed)
	ctx := context.Background()

	start, err := engine.StartMines(ctx, account.ID, decimal.NewFromInt(100), 3)
	require.NoError(t, err)
	assert.Equal(t, services.VerifyMines(testSeed, account.ID, 1, 3), start.Mines)

	// the client opens cells locally; the reported count is capped at the safe cells
	cash, err := engine.CashoutMines(ctx, account.ID, start.RoundID, 30)
	require.NoError(t, err)
	assert.True(t, cash.Multiplier.Equal(models.MinesMultiplier(22, 3)))
}

func TestGameEngineValidation(t *testing.T) {
	engine, _, account := setupEngine(t, config.RevealModeServer)
	ctx := context.Background()
	var verr *models.ValidationError

	_, err := engine.StartMines(ctx, account.ID, decimal.NewFromInt(100), 0)
	assert.ErrorAs(t, err, &verr)

	_, err = engine.StartMines(ctx, account.ID, decimal.Zero, 3)
	assert.ErrorAs(t, err, &verr)

	_, err = engine.StartMines(ctx, account.ID, decimal.NewFromInt(2000), 3)
	assert.ErrorIs(t, err, services.ErrInsufficientFunds)

	start, err := engine.StartMines(ctx, account.ID, decimal.NewFromInt(100), 3)
	require.NoError(t, err)

	_, err = engine.RevealMines(ctx, account.ID, start.RoundID, 25)
	assert.ErrorAs(t, err, &verr)

	_, err = engine.RevealMines(ctx, account.ID+1, start.RoundID, 0)
	assert.ErrorIs(t, err, services.ErrRoundNotFound)

	_, err = engine.SpinRoulette(ctx, account.ID, decimal.RequireFromString("0.001"))
	assert.ErrorAs(t, err, &verr)

	_, err = engine.SpinRoulette(ctx, account.ID, decimal.RequireFromString("100.005"))
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "2 decimal places")
}

func TestSpinRoulette(t *testing.T) {
	engine, store, account := setupEngine(t, config.RevealModeServer)
	ctx := context.Background()

	resp, err := engine.SpinRoulette(ctx, account.ID, decimal.NewFromInt(500))
	require.NoError(t, err)

	if services.VerifyRoulette(testSeed, account.ID, 1) {
		assert.Equal(t, models.RouletteWin, resp.Result)
		assert.Equal(t, "1000", resp.WinAmount.String())
		assert.Equal(t, "1500", resp.Balance.String())
		assert.Equal(t, "You won!", resp.Message)
	} else {
		assert.Equal(t, models.RouletteLoss, resp.Result)
		assert.True(t, resp.WinAmount.IsZero())
		assert.Equal(t, "500", resp.Balance.String())
		assert.Equal(t, "You lost!", resp.Message)
	}
	assert.Equal(t, resp.Balance.String(), balanceOf(t, store, account.ID).RUB.String())

	_, err = engine.SpinRoulette(ctx, account.ID, decimal.NewFromInt(5000))
	assert.ErrorIs(t, err, services.ErrInsufficientFunds)
}

func TestGameEngineRateLimit(t *testing.T) {
	engine, _, account := setupEngine(t, config.RevealModeServer)
	ctx := context.Background()

	for i := 0; i < services.DefaultRateLimitBets; i++ {
		_, err := engine.SpinRoulette(ctx, account.ID, decimal.NewFromInt(1))
		require.NoError(t, err)
	}
	_, err := engine.SpinRoulette(ctx, account.ID, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, services.ErrRateLimited)
}

func TestCleanupStaleGames(t *testing.T) {
	engine, store, account := setupEngine(t, config.RevealModeServer)
	ctx := context.Background()

	start, err := engine.StartMines(ctx, account.ID, decimal.NewFromInt(100), 3)
	require.NoError(t, err)

	assert.Zero(t, engine.CleanupStaleGames(ctx, time.Hour))

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, engine.CleanupStaleGames(ctx, time.Millisecond))

	round, err := store.GetRound(ctx, start.RoundID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusExpired, round.Status)
	assert.Equal(t, "900", balanceOf(t, store, account.ID).RUB.String())

	_, err = engine.StartMines(ctx, account.ID, decimal.NewFromInt(100), 3)
	assert.NoError(t, err)
}
