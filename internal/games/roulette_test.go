package games_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"casino-miniapp/internal/games"
	"casino-miniapp/internal/inflight"
	"casino-miniapp/internal/ledger"
	"casino-miniapp/internal/models"
)

func TestRouletteLossWaitsForDelay(t *testing.T) {
	sess := newSession(t, "1000", "3")
	api := new(MockLedger)
	delay := 50 * time.Millisecond
	roulette := games.NewRoulette(api, sess, inflight.NewGuard(), delay)

	api.On("SpinRoulette", mock.Anything, decEq("500")).
		Return(&models.GameResponse{Success: true, Result: models.RouletteLoss, Balance: dec("500")}, nil)

	start := time.Now()
	outcome, err := roulette.Spin(context.Background(), dec("500"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), delay)

	assert.Equal(t, models.RouletteLoss, outcome.Result)
	assert.Equal(t, games.RouletteSettled, roulette.State())

	b := balances(t, sess)
	assert.Equal(t, "500", b.RUB.String())
	assert.Equal(t, "3", b.USD.String())

	last, ok := roulette.Last()
	require.True(t, ok)
	assert.Equal(t, outcome, last)
}

func TestRouletteWin(t *testing.T) {
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	roulette := games.NewRoulette(api, sess, inflight.NewGuard(), 0)

	api.On("SpinRoulette", mock.Anything, mock.Anything).
		Return(&models.GameResponse{Success: true, Result: models.RouletteWin, WinAmount: dec("200"), Balance: dec("1100")}, nil)

	outcome, err := roulette.Spin(context.Background(), dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "200", outcome.WinAmount.String())
	assert.Equal(t, "1100", balances(t, sess).RUB.String())
}

func TestRouletteFailureReturnsToIdle(t *testing.T) {
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	roulette := games.NewRoulette(api, sess, inflight.NewGuard(), time.Hour)

	api.On("SpinRoulette", mock.Anything, mock.Anything).
		Return(nil, &ledger.TransportError{Op: "spin roulette", Err: errors.New("connection refused")})

	done := make(chan error, 1)
	go func() {
		_, err := roulette.Spin(context.Background(), dec("100"))
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("failed spin waited for the presentation delay")
	}

	assert.Equal(t, games.RouletteIdle, roulette.State())
	_, ok := roulette.Last()
	assert.False(t, ok)
	assert.Equal(t, "1000", balances(t, sess).RUB.String())
}

func TestRouletteRejectsOverBalance(t *testing.T) {
	sess := newSession(t, "100", "0")
	api := new(MockLedger)
	roulette := games.NewRoulette(api, sess, inflight.NewGuard(), 0)

	_, err := roulette.Spin(context.Background(), dec("150"))
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
	api.AssertNotCalled(t, "SpinRoulette", mock.Anything, mock.Anything)
}

func TestRouletteSecondSpinInFlight(t *testing.T) {
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	guard := inflight.NewGuard()
	roulette := games.NewRoulette(api, sess, guard, 0)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	api.On("SpinRoulette", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-unblock
		}).
		Return(&models.GameResponse{Success: true, Result: models.RouletteLoss, Balance: dec("900")}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := roulette.Spin(context.Background(), dec("100"))
		done <- err
	}()
	<-entered

	assert.Equal(t, games.RouletteSpinning, roulette.State())
	assert.True(t, guard.Busy("roulette.spin"))
	_, err := roulette.Spin(context.Background(), dec("100"))
	assert.ErrorIs(t, err, inflight.ErrInFlight)

	close(unblock)
	require.NoError(t, <-done)
	api.AssertNumberOfCalls(t, "SpinRoulette", 1)
}

func TestRouletteCancelledDuringDelayStillSettles(t *testing.T) {
	sess := newSession(t, "1000", "0")
	api := new(MockLedger)
	roulette := games.NewRoulette(api, sess, inflight.NewGuard(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	api.On("SpinRoulette", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&models.GameResponse{Success: true, Result: models.RouletteLoss, Balance: dec("900")}, nil)

	_, err := roulette.Spin(ctx, dec("100"))
	require.NoError(t, err)
	assert.Equal(t, games.RouletteSettled, roulette.State())
	assert.Equal(t, "900", balances(t, sess).RUB.String())
}
