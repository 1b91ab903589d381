package games

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/inflight"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/session"
)

type RouletteState int

const (
	RouletteIdle RouletteState = iota
	RouletteSpinning
	RouletteSettled
)

func (s RouletteState) String() string {
	switch s {
	case RouletteSpinning:
		return "spinning"
	case RouletteSettled:
		return "settled"
	default:
		return "idle"
	}
}

const DefaultSpinDelay = 2 * time.Second

type RouletteOutcome struct {
	Bet       decimal.Decimal
	Result    models.RouletteResult
	WinAmount decimal.Decimal
	Balance   decimal.Decimal
	Message   string
}

// Roulette drives Idle → Spinning → Settled. A spin always lasts at least the
// presentation delay unless the ledger call fails.
type Roulette struct {
	api        RouletteAPI
	session    *session.Session
	reconciler *session.Reconciler
	guard      *inflight.Guard
	delay      time.Duration
	after      func(time.Duration) <-chan time.Time

	mu    sync.Mutex
	state RouletteState
	last  *RouletteOutcome
}

func NewRoulette(api RouletteAPI, sess *session.Session, guard *inflight.Guard, delay time.Duration) *Roulette {
	if delay < 0 {
		delay = DefaultSpinDelay
	}
	return &Roulette{
		api:        api,
		session:    sess,
		reconciler: sess.Reconciler(),
		guard:      guard,
		delay:      delay,
		after:      time.After,
	}
}

func (r *Roulette) State() RouletteState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Last returns the outcome shown after the most recent settled spin.
func (r *Roulette) Last() (RouletteOutcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return RouletteOutcome{}, false
	}
	return *r.last, true
}

func (r *Roulette) Spin(ctx context.Context, bet decimal.Decimal) (RouletteOutcome, error) {
	if err := validateBet(r.session, bet); err != nil {
		return RouletteOutcome{}, err
	}

	release, err := r.guard.Acquire("roulette.spin")
	if err != nil {
		return RouletteOutcome{}, err
	}
	defer release()

	r.setState(RouletteSpinning, nil)
	minimum := r.after(r.delay)

	ticket := r.reconciler.Ticket()
	resp, err := r.api.SpinRoulette(ctx, bet)
	if err != nil {
		// nothing to wait for
		r.setState(RouletteIdle, nil)
		return RouletteOutcome{}, err
	}

	outcome := RouletteOutcome{
		Bet:       bet,
		Result:    resp.Result,
		WinAmount: resp.WinAmount,
		Balance:   resp.Balance,
		Message:   resp.Message,
	}

	select {
	case <-minimum:
	case <-ctx.Done():
		// the ledger has settled; show it now rather than drop it
	}

	_, applyErr := r.reconciler.ApplyPrimary(context.WithoutCancel(ctx), ticket, resp.Balance)
	r.setState(RouletteSettled, &outcome)

	log.WithFields(log.Fields{
		"bet":    bet.String(),
		"result": outcome.Result,
	}).Debug("Roulette settled")

	return outcome, applyErr
}

func (r *Roulette) setState(state RouletteState, outcome *RouletteOutcome) {
	r.mu.Lock()
	r.state = state
	r.last = outcome
	r.mu.Unlock()
}
