package inflight_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-miniapp/internal/inflight"
)

func TestAcquireRelease(t *testing.T) {
	g := inflight.NewGuard()

	release, err := g.Acquire("mines.start")
	require.NoError(t, err)
	assert.True(t, g.Busy("mines.start"))

	_, err = g.Acquire("mines.start")
	assert.ErrorIs(t, err, inflight.ErrInFlight)

	other, err := g.Acquire("roulette.spin")
	require.NoError(t, err, "keys are independent")
	other()

	release()
	release() // second call is harmless
	assert.False(t, g.Busy("mines.start"))

	again, err := g.Acquire("mines.start")
	require.NoError(t, err)
	again()
}

func TestOnlyOneWinner(t *testing.T) {
	g := inflight.NewGuard()

	var winners int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := g.Acquire("staff.decide.1"); err == nil {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&winners))
	assert.True(t, g.Busy("staff.decide.1"), "winner never released")
	assert.False(t, g.Busy("unknown"))
}
