package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/config"
	"casino-miniapp/internal/models"
)

// GameEngine settles mines and roulette wagers. Outcomes are derived from an
// HMAC of the server seed over the game, account and nonce.
type GameEngine struct {
	store      Store
	serverSeed string
	exposed    bool
	now        func() time.Time
}

func NewGameEngine(store Store, cfg *config.Config) *GameEngine {
	return &GameEngine{
		store:      store,
		serverSeed: generateServerSeed(),
		exposed:    cfg.MinesRevealMode == config.RevealModeExposed,
		now:        time.Now,
	}
}

func generateServerSeed() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("failed to generate server seed: %v", err))
	}
	return hex.EncodeToString(bytes)
}

func (ge *GameEngine) GetServerHash() string {
	hash := sha256.Sum256([]byte(ge.serverSeed))
	return hex.EncodeToString(hash[:])
}

func (ge *GameEngine) RotateServerSeed(newSeed string) {
	ge.serverSeed = newSeed
}

func (ge *GameEngine) digest(game string, userID, nonce int64) []byte {
	return gameDigest(ge.serverSeed, game, userID, nonce)
}

func gameDigest(serverSeed, game string, userID, nonce int64) []byte {
	h := hmac.New(sha256.New, []byte(serverSeed))
	fmt.Fprintf(h, "%s:%d:%d", game, userID, nonce)
	return h.Sum(nil)
}

// VerifyMines recomputes a round's mine layout once its seed is revealed.
func VerifyMines(serverSeed string, userID, nonce int64, count int) []int {
	return generateMinePositions(gameDigest(serverSeed, "mines", userID, nonce), count)
}

// VerifyRoulette recomputes whether a spin won.
func VerifyRoulette(serverSeed string, userID, nonce int64) bool {
	return gameDigest(serverSeed, "roulette", userID, nonce)[0]%2 == 0
}

// generateMinePositions shuffles the grid with the digest bytes and takes the
// first count cells.
func generateMinePositions(digest []byte, count int) []int {
	cells := make([]int, models.MinesGridSize)
	for i := range cells {
		cells[i] = i
	}
	for i := len(cells) - 1; i > 0; i-- {
		j := int(digest[len(cells)-1-i]) % (i + 1)
		cells[i], cells[j] = cells[j], cells[i]
	}

	positions := append([]int(nil), cells[:count]...)
	sort.Ints(positions)
	return positions
}

func (ge *GameEngine) checkRateLimit(ctx context.Context, userID int64, action string, limit int) error {
	allowed, err := ge.store.CheckRateLimit(ctx, userID, action, limit, time.Minute)
	if err != nil {
		return fmt.Errorf("rate limit check failed: %v", err)
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// StartMines debits the bet and opens a round. The layout is returned only in
// exposed mode.
func (ge *GameEngine) StartMines(ctx context.Context, userID int64, bet decimal.Decimal, minesCount int) (*models.GameResponse, error) {
	if err := models.ValidateMinesCount(minesCount); err != nil {
		return nil, err
	}
	betMinor, err := models.AmountToMinor("bet", bet)
	if err != nil {
		return nil, err
	}
	if err := ge.checkRateLimit(ctx, userID, "bet", DefaultRateLimitBets); err != nil {
		return nil, err
	}

	nonce, err := ge.store.NextNonce(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := ge.now().UTC()
	round := &models.MinesRound{
		ID:         models.GenerateRoundID(),
		UserID:     userID,
		BetAmount:  betMinor,
		MinesCount: minesCount,
		Mines:      generateMinePositions(ge.digest("mines", userID, nonce), minesCount),
		Revealed:   []int{},
		Status:     models.RoundStatusActive,
		Nonce:      nonce,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	account, err := ge.store.OpenRound(ctx, round)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"round_id":   round.ID,
		"account_id": userID,
		"bet":        bet.String(),
		"mines":      minesCount,
	}).Info("Mines round started")

	resp := &models.GameResponse{
		Success:    true,
		RoundID:    round.ID,
		Multiplier: models.MinesMultiplier(0, minesCount),
		Balance:    models.FromMinor(account.BalanceRUB),
	}
	if ge.exposed {
		resp.Mines = round.Mines
	}
	return resp, nil
}

func (ge *GameEngine) ownedRound(ctx context.Context, userID int64, roundID string) (*models.MinesRound, error) {
	round, err := ge.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.UserID != userID {
		return nil, ErrRoundNotFound
	}
	if round.Status != models.RoundStatusActive {
		return nil, ErrRoundFinished
	}
	return round, nil
}

// RevealMines opens one cell. Hitting a mine ends the round; the bet was
// already taken at start.
func (ge *GameEngine) RevealMines(ctx context.Context, userID int64, roundID string, cell int) (*models.GameResponse, error) {
	if err := models.ValidateCell(cell); err != nil {
		return nil, err
	}
	if err := ge.checkRateLimit(ctx, userID, "reveal", DefaultRateLimitReveal); err != nil {
		return nil, err
	}

	round, err := ge.ownedRound(ctx, userID, roundID)
	if err != nil {
		return nil, err
	}

	if round.IsRevealed(cell) {
		return &models.GameResponse{
			Success:    true,
			RoundID:    round.ID,
			Multiplier: models.MinesMultiplier(len(round.Revealed), round.MinesCount),
		}, nil
	}

	round.Revealed = append(round.Revealed, cell)
	round.UpdatedAt = ge.now().UTC()

	if round.IsMine(cell) {
		round.Status = models.RoundStatusExploded
		safe := len(round.Revealed) - 1
		if _, err := ge.store.SettleRound(ctx, round, 0); err != nil {
			return nil, err
		}
		ge.record(ctx, round, "loss", decimal.Zero)

		log.WithFields(log.Fields{"round_id": round.ID, "cell": cell}).Info("Mine hit")
		return &models.GameResponse{
			Success:    true,
			RoundID:    round.ID,
			Mine:       true,
			Mines:      round.Mines,
			Multiplier: models.MinesMultiplier(safe, round.MinesCount),
		}, nil
	}

	if err := ge.store.UpdateRound(ctx, round); err != nil {
		return nil, err
	}
	return &models.GameResponse{
		Success:    true,
		RoundID:    round.ID,
		Multiplier: models.MinesMultiplier(len(round.Revealed), round.MinesCount),
	}, nil
}

// CashoutMines credits bet × multiplier and ends the round. In server mode the
// reveal count is the ledger's own; in exposed mode cells were opened on the
// client and its count is taken, capped at the number of safe cells.
func (ge *GameEngine) CashoutMines(ctx context.Context, userID int64, roundID string, opened int) (*models.GameResponse, error) {
	if err := ge.checkRateLimit(ctx, userID, "cashout", DefaultRateLimitCashout); err != nil {
		return nil, err
	}

	round, err := ge.ownedRound(ctx, userID, roundID)
	if err != nil {
		return nil, err
	}

	safe := len(round.Revealed)
	if ge.exposed {
		safe = opened
		if limit := models.MinesGridSize - round.MinesCount; safe > limit {
			safe = limit
		}
		if safe < 0 {
			safe = 0
		}
	} else if opened != safe {
		log.WithFields(log.Fields{
			"round_id": round.ID,
			"reported": opened,
			"revealed": safe,
		}).Warn("Cash-out reveal count differs from ledger")
	}

	multiplier := models.MinesMultiplier(safe, round.MinesCount)
	payout := models.Payout(models.FromMinor(round.BetAmount), multiplier)

	round.Status = models.RoundStatusCashedOut
	round.UpdatedAt = ge.now().UTC()
	account, err := ge.store.SettleRound(ctx, round, models.ToMinor(payout))
	if err != nil {
		return nil, err
	}
	ge.record(ctx, round, "win", payout)

	log.WithFields(log.Fields{
		"round_id": round.ID,
		"payout":   payout.String(),
	}).Info("Mines cashed out")

	return &models.GameResponse{
		Success:    true,
		RoundID:    round.ID,
		Mines:      round.Mines,
		Multiplier: multiplier,
		Payout:     payout,
		Balance:    models.FromMinor(account.BalanceRUB),
	}, nil
}

// SpinRoulette is an even-money wager: a win pays twice the bet.
func (ge *GameEngine) SpinRoulette(ctx context.Context, userID int64, bet decimal.Decimal) (*models.GameResponse, error) {
	betMinor, err := models.AmountToMinor("bet", bet)
	if err != nil {
		return nil, err
	}
	if err := ge.checkRateLimit(ctx, userID, "bet", DefaultRateLimitBets); err != nil {
		return nil, err
	}

	nonce, err := ge.store.NextNonce(ctx, userID)
	if err != nil {
		return nil, err
	}

	win := VerifyRoulette(ge.serverSeed, userID, nonce)
	var winMinor int64
	result := models.RouletteLoss
	message := "You lost!"
	if win {
		winMinor = betMinor * 2
		result = models.RouletteWin
		message = "You won!"
	}

	account, err := ge.store.Move(ctx, userID, models.Movement{DebitRUB: betMinor, CreditRUB: winMinor})
	if err != nil {
		return nil, err
	}

	winAmount := models.FromMinor(winMinor)
	if err := ge.store.RecordGame(ctx, &models.GameRecord{
		ID:        models.GenerateRecordID(),
		UserID:    userID,
		GameType:  models.GameTypeRoulette,
		BetAmount: models.FromMinor(betMinor),
		Result:    string(result),
		WinAmount: winAmount,
		Details:   map[string]any{"nonce": nonce},
		CreatedAt: ge.now().UTC(),
	}); err != nil {
		log.WithError(err).Warn("Failed to record roulette game")
	}

	return &models.GameResponse{
		Success:   true,
		Result:    result,
		WinAmount: winAmount,
		Balance:   models.FromMinor(account.BalanceRUB),
		Message:   message,
	}, nil
}

// ActiveMines returns the caller's open round, or a response without a round
// when there is none.
func (ge *GameEngine) ActiveMines(ctx context.Context, userID int64) (*models.GameResponse, error) {
	round, err := ge.store.ActiveRound(ctx, userID)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return &models.GameResponse{Success: true}, nil
	}

	view := &models.MinesRoundView{
		RoundID:    round.ID,
		BetAmount:  models.FromMinor(round.BetAmount),
		MinesCount: round.MinesCount,
		Revealed:   append([]int{}, round.Revealed...),
	}
	if ge.exposed {
		view.Mines = round.Mines
	}
	return &models.GameResponse{
		Success:    true,
		RoundID:    round.ID,
		Multiplier: models.MinesMultiplier(len(round.Revealed), round.MinesCount),
		Round:      view,
	}, nil
}

func (ge *GameEngine) History(ctx context.Context, userID int64, limit int64) ([]*models.GameRecord, error) {
	return ge.store.GameHistory(ctx, userID, limit)
}

func (ge *GameEngine) record(ctx context.Context, round *models.MinesRound, result string, win decimal.Decimal) {
	err := ge.store.RecordGame(ctx, &models.GameRecord{
		ID:        models.GenerateRecordID(),
		UserID:    round.UserID,
		GameType:  models.GameTypeMines,
		BetAmount: models.FromMinor(round.BetAmount),
		Result:    result,
		WinAmount: win,
		Details: map[string]any{
			"round_id":    round.ID,
			"mines_count": round.MinesCount,
			"mines":       round.Mines,
			"revealed":    round.Revealed,
			"nonce":       round.Nonce,
		},
		CreatedAt: ge.now().UTC(),
	})
	if err != nil {
		log.WithError(err).WithField("round_id", round.ID).Warn("Failed to record mines game")
	}
}

// CleanupStaleGames forfeits mines rounds with no activity for maxAge.
func (ge *GameEngine) CleanupStaleGames(ctx context.Context, maxAge time.Duration) int {
	stale, err := ge.store.StaleRounds(ctx, ge.now().Add(-maxAge))
	if err != nil {
		log.WithError(err).Error("Failed to list stale mines rounds")
		return 0
	}

	closed := 0
	for _, round := range stale {
		round.Status = models.RoundStatusExpired
		round.UpdatedAt = ge.now().UTC()
		if _, err := ge.store.SettleRound(ctx, round, 0); err != nil {
			log.WithError(err).WithField("round_id", round.ID).Debug("Stale round already settled")
			continue
		}
		ge.record(ctx, round, "expired", decimal.Zero)
		closed++
	}

	if closed > 0 {
		log.WithField("rounds", closed).Info("Expired stale mines rounds")
	}
	return closed
}
