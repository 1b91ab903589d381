package games_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"casino-miniapp/internal/games"
	"casino-miniapp/internal/inflight"
	"casino-miniapp/internal/ledger"
	"casino-miniapp/internal/models"
)

func TestMinesStartDebitsBet(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "1000", "5")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("StartMines", mock.Anything, decEq("100"), 3).
		Return(&models.GameResponse{Success: true, RoundID: "r1", Balance: dec("900")}, nil)

	round, err := mines.Start(ctx, dec("100"), 3)
	require.NoError(t, err)
	assert.Equal(t, games.MinesActive, round.State)
	assert.Equal(t, "r1", round.ID)
	assert.Empty(t, round.Mines, "server mode keeps the layout hidden")
	for _, open := range round.Revealed {
		assert.False(t, open)
	}

	b := balances(t, sess)
	assert.Equal(t, "900", b.RUB.String())
	assert.Equal(t, "5", b.USD.String(), "only the primary balance changes")
	api.AssertExpectations(t)
}

func TestMinesStartValidation(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "100", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	var verr *models.ValidationError
	_, err := mines.Start(ctx, dec("0"), 3)
	assert.ErrorAs(t, err, &verr)
	_, err = mines.Start(ctx, dec("100.01"), 3)
	assert.ErrorAs(t, err, &verr)
	_, err = mines.Start(ctx, dec("10"), 0)
	assert.ErrorAs(t, err, &verr)
	_, err = mines.Start(ctx, dec("10"), 11)
	assert.ErrorAs(t, err, &verr)

	api.AssertNotCalled(t, "StartMines", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, games.MinesIdle, mines.State())
}

func TestMinesRejectsSecondRound(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("StartMines", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.GameResponse{Success: true, RoundID: "r1", Balance: dec("900")}, nil).Once()

	_, err := mines.Start(ctx, dec("100"), 3)
	require.NoError(t, err)

	_, err = mines.Start(ctx, dec("100"), 3)
	assert.ErrorIs(t, err, games.ErrRoundActive)
	api.AssertNumberOfCalls(t, "StartMines", 1)
}

func TestMinesStartFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("StartMines", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &ledger.RejectedError{Status: 400, Message: "insufficient funds"})

	_, err := mines.Start(ctx, dec("100"), 3)
	assert.True(t, ledger.IsRejected(err))
	assert.Equal(t, games.MinesIdle, mines.State())
	assert.Equal(t, "1000", balances(t, sess).RUB.String())
}

func TestMinesScenarioCashOut(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("StartMines", mock.Anything, decEq("100"), 3).
		Return(&models.GameResponse{Success: true, RoundID: "r1", Balance: dec("900")}, nil)
	api.On("RevealMines", mock.Anything, "r1", 0).Return(&models.GameResponse{Success: true}, nil).Once()
	api.On("RevealMines", mock.Anything, "r1", 1).Return(&models.GameResponse{Success: true}, nil).Once()
	api.On("CashoutMines", mock.Anything, "r1", 2).
		Return(&models.GameResponse{Success: true, Payout: dec("118"), Balance: dec("1018"), Mines: []int{5, 6, 7}}, nil).Once()

	_, err := mines.Start(ctx, dec("100"), 3)
	require.NoError(t, err)

	res, err := mines.Reveal(ctx, 0)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "1.09", res.Round.Multiplier.String())

	res, err = mines.Reveal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "1.18", res.Round.Multiplier.String())

	// reveal of an open cell is a no-op and never reaches the ledger
	res, err = mines.Reveal(ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 2, res.Round.SafeReveals)

	out, err := mines.CashOut(ctx)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, "118.00", out.Payout.StringFixed(2))
	assert.Equal(t, games.MinesCashedOut, out.Round.State)
	assert.Equal(t, []int{5, 6, 7}, out.Round.Mines)
	assert.Equal(t, "1018", balances(t, sess).RUB.String())

	// terminal: second cash-out and further reveals are no-ops
	again, err := mines.CashOut(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	res, err = mines.Reveal(ctx, 9)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, "1.18", res.Round.Multiplier.String(), "multiplier frozen after the round ends")

	api.AssertNumberOfCalls(t, "CashoutMines", 1)
	api.AssertExpectations(t)
}

func TestMinesExplode(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("StartMines", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.GameResponse{Success: true, RoundID: "r1", Balance: dec("900")}, nil)
	api.On("RevealMines", mock.Anything, "r1", 4).Return(&models.GameResponse{Success: true}, nil)
	api.On("RevealMines", mock.Anything, "r1", 7).
		Return(&models.GameResponse{Success: true, Mine: true, Mines: []int{7, 8, 9}}, nil)

	_, err := mines.Start(ctx, dec("100"), 3)
	require.NoError(t, err)
	_, err = mines.Reveal(ctx, 4)
	require.NoError(t, err)

	res, err := mines.Reveal(ctx, 7)
	require.NoError(t, err)
	assert.True(t, res.Mine)
	assert.Equal(t, games.MinesExploded, res.Round.State)
	assert.Equal(t, []int{7, 8, 9}, res.Round.Mines)
	assert.Equal(t, "1.09", res.Round.Multiplier.String())

	assert.Equal(t, "900", balances(t, sess).RUB.String(), "no balance change beyond the initial debit")

	out, err := mines.CashOut(ctx)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	api.AssertNotCalled(t, "CashoutMines", mock.Anything, mock.Anything, mock.Anything)
}

func TestMinesExposedLayoutResolvesLocally(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "500", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("StartMines", mock.Anything, mock.Anything, 2).
		Return(&models.GameResponse{Success: true, RoundID: "r9", Mines: []int{3, 12}, Balance: dec("450")}, nil)

	round, err := mines.Start(ctx, dec("50"), 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 12}, round.Mines)

	res, err := mines.Reveal(ctx, 0)
	require.NoError(t, err)
	assert.False(t, res.Mine)
	assert.Equal(t, "1.06", res.Round.Multiplier.String())

	res, err = mines.Reveal(ctx, 12)
	require.NoError(t, err)
	assert.True(t, res.Mine)
	assert.Equal(t, games.MinesExploded, mines.State())

	api.AssertNotCalled(t, "RevealMines", mock.Anything, mock.Anything, mock.Anything)
}

func TestMinesCashOutFailureKeepsRoundActive(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("StartMines", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.GameResponse{Success: true, RoundID: "r1", Balance: dec("900")}, nil)
	api.On("CashoutMines", mock.Anything, "r1", 0).
		Return(nil, &ledger.TransportError{Op: "cash out", Err: errors.New("timeout")}).Once()
	api.On("CashoutMines", mock.Anything, "r1", 0).
		Return(&models.GameResponse{Success: true, Balance: dec("1000")}, nil).Once()

	_, err := mines.Start(ctx, dec("100"), 3)
	require.NoError(t, err)

	_, err = mines.CashOut(ctx)
	require.Error(t, err)
	assert.Equal(t, games.MinesActive, mines.State())
	assert.Equal(t, "900", balances(t, sess).RUB.String())

	out, err := mines.CashOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100.00", out.Payout.StringFixed(2))
	assert.Equal(t, "1000", balances(t, sess).RUB.String())
}

func TestMinesRevealInvalidCell(t *testing.T) {
	sess := newSession(t, "1000", "0")
	mines := games.NewMines(new(MockLedger), sess, inflight.NewGuard())

	_, err := mines.Reveal(context.Background(), 25)
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	res, err := mines.Reveal(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, res.Changed, "reveal while idle is a no-op")
}

func TestMinesRevealRefusedDuringCashOut(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("StartMines", mock.Anything, mock.Anything, 3).
		Return(&models.GameResponse{Success: true, RoundID: "r1", Mines: []int{20, 21, 22}, Balance: dec("900")}, nil)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	api.On("CashoutMines", mock.Anything, "r1", 0).
		Run(func(mock.Arguments) {
			close(entered)
			<-unblock
		}).
		Return(&models.GameResponse{Success: true, Payout: dec("100"), Balance: dec("1000")}, nil).Once()

	_, err := mines.Start(ctx, dec("100"), 3)
	require.NoError(t, err)

	type result struct {
		out games.CashoutResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := mines.CashOut(ctx)
		done <- result{out, err}
	}()
	<-entered

	_, err = mines.Reveal(ctx, 0)
	assert.ErrorIs(t, err, inflight.ErrInFlight)

	close(unblock)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "100.00", res.out.Payout.StringFixed(2))
	assert.Equal(t, 0, res.out.Round.SafeReveals)
	assert.Equal(t, "1", res.out.Round.Multiplier.String())
	assert.False(t, res.out.Round.Revealed[0])
	assert.Equal(t, "1000", balances(t, sess).RUB.String())
}

func TestMinesCashOutReportsLedgerPayout(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("StartMines", mock.Anything, mock.Anything, 3).
		Return(&models.GameResponse{Success: true, RoundID: "r1", Mines: []int{20, 21, 22}, Balance: dec("900")}, nil)
	api.On("CashoutMines", mock.Anything, "r1", 1).
		Return(&models.GameResponse{Success: true, Payout: dec("105"), Balance: dec("1005")}, nil)

	_, err := mines.Start(ctx, dec("100"), 3)
	require.NoError(t, err)
	_, err = mines.Reveal(ctx, 0)
	require.NoError(t, err)

	out, err := mines.CashOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, "105", out.Payout.String(), "the credited amount is the ledger's")
	assert.Equal(t, "105", out.Round.Payout.String())
}

func TestMinesResume(t *testing.T) {
	ctx := context.Background()
	sess := newSession(t, "900", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("ActiveMines", mock.Anything).Return(&models.GameResponse{
		Success: true,
		RoundID: "r7",
		Round: &models.MinesRoundView{
			RoundID:    "r7",
			BetAmount:  dec("100"),
			MinesCount: 3,
			Revealed:   []int{4, 9},
		},
	}, nil).Once()
	api.On("CashoutMines", mock.Anything, "r7", 2).
		Return(&models.GameResponse{Success: true, Payout: dec("118"), Balance: dec("1018")}, nil).Once()

	round, ok, err := mines.Resume(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, games.MinesActive, round.State)
	assert.True(t, round.Revealed[4])
	assert.True(t, round.Revealed[9])
	assert.Equal(t, 2, round.SafeReveals)
	assert.Equal(t, "1.18", round.Multiplier.String())

	// an active round is resumed locally without asking again
	_, ok, err = mines.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := mines.CashOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, "118.00", out.Payout.StringFixed(2))
	assert.Equal(t, "1018", balances(t, sess).RUB.String())
	api.AssertExpectations(t)
}

func TestMinesResumeNothingOpen(t *testing.T) {
	sess := newSession(t, "900", "0")
	api := new(MockLedger)
	mines := games.NewMines(api, sess, inflight.NewGuard())

	api.On("ActiveMines", mock.Anything).Return(&models.GameResponse{Success: true}, nil)

	_, ok, err := mines.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, games.MinesIdle, mines.State())
}
