package games

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/inflight"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/session"
)

type MinesState int

const (
	MinesIdle MinesState = iota
	MinesActive
	MinesExploded
	MinesCashedOut
)

func (s MinesState) String() string {
	switch s {
	case MinesActive:
		return "active"
	case MinesExploded:
		return "exploded"
	case MinesCashedOut:
		return "cashed_out"
	default:
		return "idle"
	}
}

func (s MinesState) Terminal() bool {
	return s == MinesExploded || s == MinesCashedOut
}

// MinesRound is a snapshot of the current (or last finished) round.
type MinesRound struct {
	ID          string
	Bet         decimal.Decimal
	MinesCount  int
	State       MinesState
	Revealed    [models.MinesGridSize]bool
	Mines       []int // known mine cells; empty until learned
	SafeReveals int
	Multiplier  decimal.Decimal
	Payout      decimal.Decimal // set on cash-out

	// exposed rounds received the full mine set at start and resolve reveals locally
	exposed bool
}

func (r *MinesRound) isMine(cell int) bool {
	for _, m := range r.Mines {
		if m == cell {
			return true
		}
	}
	return false
}

// PotentialPayout is what a cash-out right now would pay.
func (r MinesRound) PotentialPayout() decimal.Decimal {
	return models.Payout(r.Bet, r.Multiplier)
}

type RevealResult struct {
	Cell    int
	Mine    bool
	Changed bool // false when the reveal was a no-op
	Round   MinesRound
}

type CashoutResult struct {
	Payout  decimal.Decimal
	Changed bool
	Round   MinesRound
}

const minesRoundKey = "mines.round"

// Mines drives one account's mines rounds: Idle → Active → Exploded | CashedOut.
type Mines struct {
	api        MinesAPI
	session    *session.Session
	reconciler *session.Reconciler
	guard      *inflight.Guard

	mu    sync.Mutex
	round *MinesRound
}

func NewMines(api MinesAPI, sess *session.Session, guard *inflight.Guard) *Mines {
	return &Mines{
		api:        api,
		session:    sess,
		reconciler: sess.Reconciler(),
		guard:      guard,
	}
}

func (m *Mines) State() MinesState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round == nil {
		return MinesIdle
	}
	return m.round.State
}

func (m *Mines) Round() (MinesRound, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round == nil {
		return MinesRound{}, false
	}
	return *m.round, true
}

// Start places a bet. The ledger debits it and the round becomes Active with
// an all-hidden grid.
func (m *Mines) Start(ctx context.Context, bet decimal.Decimal, minesCount int) (MinesRound, error) {
	if err := models.ValidateMinesCount(minesCount); err != nil {
		return MinesRound{}, err
	}
	if err := validateBet(m.session, bet); err != nil {
		return MinesRound{}, err
	}

	release, err := m.guard.Acquire("mines.start")
	if err != nil {
		return MinesRound{}, err
	}
	defer release()

	if m.State() == MinesActive {
		return MinesRound{}, ErrRoundActive
	}

	ticket := m.reconciler.Ticket()
	resp, err := m.api.StartMines(ctx, bet, minesCount)
	if err != nil {
		return MinesRound{}, err
	}

	round := &MinesRound{
		ID:         resp.RoundID,
		Bet:        bet,
		MinesCount: minesCount,
		State:      MinesActive,
		Multiplier: models.MinesMultiplier(0, minesCount),
		exposed:    len(resp.Mines) > 0,
	}
	if round.exposed {
		round.Mines = append([]int(nil), resp.Mines...)
	}

	m.mu.Lock()
	m.round = round
	snapshot := *round
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"round_id": round.ID,
		"bet":      bet.String(),
		"mines":    minesCount,
	}).Debug("Mines round started")

	// the round exists on the ledger even if the local write fails
	if _, err := m.reconciler.ApplyPrimary(ctx, ticket, resp.Balance); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

// Reveal opens a hidden cell. Revealing outside an active round, or a cell
// already open, changes nothing. Reveals and cash-out share one in-flight
// slot, so a reveal is refused while a cash-out is pending.
func (m *Mines) Reveal(ctx context.Context, cell int) (RevealResult, error) {
	if err := models.ValidateCell(cell); err != nil {
		return RevealResult{}, err
	}

	release, err := m.guard.Acquire(minesRoundKey)
	if err != nil {
		return RevealResult{}, err
	}
	defer release()

	m.mu.Lock()
	round := m.round
	if round == nil || round.State != MinesActive || round.Revealed[cell] {
		res := RevealResult{Cell: cell}
		if round != nil {
			res.Round = *round
		}
		m.mu.Unlock()
		return res, nil
	}
	if round.exposed {
		res := m.resolveLocked(round, cell, round.isMine(cell), nil)
		m.mu.Unlock()
		return res, nil
	}
	roundID := round.ID
	m.mu.Unlock()

	resp, err := m.api.RevealMines(ctx, roundID, cell)
	if err != nil {
		return RevealResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round == nil || m.round.ID != roundID || m.round.State != MinesActive || m.round.Revealed[cell] {
		res := RevealResult{Cell: cell}
		if m.round != nil {
			res.Round = *m.round
		}
		return res, nil
	}
	return m.resolveLocked(m.round, cell, resp.Mine, resp.Mines), nil
}

func (m *Mines) resolveLocked(round *MinesRound, cell int, mine bool, mines []int) RevealResult {
	round.Revealed[cell] = true

	if mine {
		// the bet was debited at start; nothing further to settle
		round.State = MinesExploded
		if len(mines) > 0 {
			round.Mines = append([]int(nil), mines...)
		}
		log.WithFields(log.Fields{"round_id": round.ID, "cell": cell}).Debug("Mine hit")
		return RevealResult{Cell: cell, Mine: true, Changed: true, Round: *round}
	}

	round.SafeReveals++
	round.Multiplier = models.MinesMultiplier(round.SafeReveals, round.MinesCount)
	return RevealResult{Cell: cell, Changed: true, Round: *round}
}

// CashOut settles an active round at the multiplier held when the call was
// made. The ledger credits the payout and its confirmed balance is applied;
// a failed call leaves the round active.
func (m *Mines) CashOut(ctx context.Context) (CashoutResult, error) {
	release, err := m.guard.Acquire(minesRoundKey)
	if err != nil {
		return CashoutResult{}, err
	}
	defer release()

	m.mu.Lock()
	round := m.round
	if round == nil || round.State != MinesActive {
		res := CashoutResult{}
		if round != nil {
			res.Round = *round
		}
		m.mu.Unlock()
		return res, nil
	}
	roundID, opened := round.ID, round.SafeReveals
	payout := round.PotentialPayout()
	m.mu.Unlock()

	ticket := m.reconciler.Ticket()
	resp, err := m.api.CashoutMines(ctx, roundID, opened)
	if err != nil {
		return CashoutResult{}, err
	}

	if !resp.Payout.IsZero() {
		if !resp.Payout.Equal(payout) {
			log.WithFields(log.Fields{
				"round_id": roundID,
				"local":    payout.String(),
				"ledger":   resp.Payout.String(),
			}).Warn("Cash-out payout differs from ledger")
		}
		payout = resp.Payout
	}

	m.mu.Lock()
	if m.round == nil || m.round.ID != roundID || m.round.State != MinesActive {
		m.mu.Unlock()
		return CashoutResult{}, fmt.Errorf("round %s changed during cash-out", roundID)
	}
	m.round.State = MinesCashedOut
	m.round.Payout = payout
	if len(resp.Mines) > 0 {
		m.round.Mines = append([]int(nil), resp.Mines...)
	}
	snapshot := *m.round
	m.mu.Unlock()

	res := CashoutResult{Payout: payout, Changed: true, Round: snapshot}
	if _, err := m.reconciler.ApplyPrimary(ctx, ticket, resp.Balance); err != nil {
		return res, err
	}
	return res, nil
}

// Resume picks up the round the ledger still holds open for this account,
// e.g. one left by a previous process. It reports false when there is none.
// Cells opened locally in an exposed round are not known to the ledger and
// come back hidden.
func (m *Mines) Resume(ctx context.Context) (MinesRound, bool, error) {
	release, err := m.guard.Acquire("mines.start")
	if err != nil {
		return MinesRound{}, false, err
	}
	defer release()

	if round, ok := m.Round(); ok && round.State == MinesActive {
		return round, true, nil
	}

	resp, err := m.api.ActiveMines(ctx)
	if err != nil {
		return MinesRound{}, false, err
	}
	if resp.Round == nil {
		return MinesRound{}, false, nil
	}

	view := resp.Round
	round := &MinesRound{
		ID:         view.RoundID,
		Bet:        view.BetAmount,
		MinesCount: view.MinesCount,
		State:      MinesActive,
		exposed:    len(view.Mines) > 0,
	}
	if round.exposed {
		round.Mines = append([]int(nil), view.Mines...)
	}
	for _, cell := range view.Revealed {
		if cell >= 0 && cell < models.MinesGridSize && !round.Revealed[cell] {
			round.Revealed[cell] = true
			round.SafeReveals++
		}
	}
	round.Multiplier = models.MinesMultiplier(round.SafeReveals, round.MinesCount)

	m.mu.Lock()
	m.round = round
	snapshot := *round
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"round_id": round.ID,
		"revealed": round.SafeReveals,
	}).Debug("Mines round resumed")
	return snapshot, true, nil
}
