package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GameType string

const (
	GameTypeMines    GameType = "mines"
	GameTypeRoulette GameType = "roulette"
)

const (
	MinesGridSize = 25
	MinMines      = 1
	MaxMines      = 10
)

type RouletteResult string

const (
	RouletteWin  RouletteResult = "win"
	RouletteLoss RouletteResult = "loss"
)

var (
	minesStep     = decimal.RequireFromString("0.3")
	minesMaxCount = decimal.NewFromInt(MaxMines)
)

// MinesMultiplier is 1 + revealed × 0.3 × (mines / 10). It grows with both the
// number of safe reveals and the mine density.
func MinesMultiplier(revealed, mines int) decimal.Decimal {
	density := decimal.NewFromInt(int64(mines)).Div(minesMaxCount)
	return decimal.NewFromInt(1).Add(decimal.NewFromInt(int64(revealed)).Mul(minesStep).Mul(density))
}

// Payout rounds bet × multiplier to minor units.
func Payout(bet, multiplier decimal.Decimal) decimal.Decimal {
	return bet.Mul(multiplier).Round(2)
}

// MinesRound is the server-side record of a mines round.
type MinesRound struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	BetAmount  int64     `json:"bet_amount"` // minor units
	MinesCount int       `json:"mines_count"`
	Mines      []int     `json:"mines"`
	Revealed   []int     `json:"revealed"`
	Status     string    `json:"status"` // active, exploded, cashed_out, expired
	Nonce      int64     `json:"nonce"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	RoundStatusActive    = "active"
	RoundStatusExploded  = "exploded"
	RoundStatusCashedOut = "cashed_out"
	RoundStatusExpired   = "expired"
)

func (r *MinesRound) IsMine(cell int) bool {
	for _, m := range r.Mines {
		if m == cell {
			return true
		}
	}
	return false
}

func (r *MinesRound) IsRevealed(cell int) bool {
	for _, c := range r.Revealed {
		if c == cell {
			return true
		}
	}
	return false
}

// GameRecord is one settled wager kept in the account's history.
type GameRecord struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	GameType  GameType        `json:"game_type"`
	BetAmount decimal.Decimal `json:"bet_amount"`
	Result    string          `json:"result"`
	WinAmount decimal.Decimal `json:"win_amount"`
	Details   map[string]any  `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
