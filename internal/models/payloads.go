package models

import "github.com/shopspring/decimal"

// Auth

type AuthAction string

const (
	AuthLogin    AuthAction = "login"
	AuthRegister AuthAction = "register"
)

type AuthRequest struct {
	Action   AuthAction `json:"action"`
	FullName string     `json:"full_name"`
	PinCode  string     `json:"pin_code"`
}

type AuthResponse struct {
	Success bool     `json:"success"`
	User    *Account `json:"user,omitempty"`
	Token   string   `json:"token,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Wallet

const (
	WalletActionRequest  = "request"
	WalletActionExchange = "exchange"
)

type WalletRequest struct {
	Action       string          `json:"action"`
	Type         RequestType     `json:"type,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     Currency        `json:"currency,omitempty"`
	FromCurrency Currency        `json:"from_currency,omitempty"`
	ToCurrency   Currency        `json:"to_currency,omitempty"`
}

type WalletResponse struct {
	Success   bool      `json:"success"`
	RequestID int64     `json:"request_id,omitempty"`
	Balance   *Balances `json:"balance,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Games

const (
	MinesActionStart   = "start"
	MinesActionReveal  = "reveal"
	MinesActionCashout = "cashout"
)

type GameRequest struct {
	GameType    GameType        `json:"game_type"`
	Action      string          `json:"action,omitempty"`
	BetAmount   decimal.Decimal `json:"bet_amount"`
	MinesCount  int             `json:"mines_count,omitempty"`
	OpenedCells int             `json:"opened_cells"`
	RoundID     string          `json:"round_id,omitempty"`
	Cell        *int            `json:"cell,omitempty"`
}

type GameResponse struct {
	Success    bool            `json:"success"`
	RoundID    string          `json:"round_id,omitempty"`
	Mines      []int           `json:"mines,omitempty"`
	Mine       bool            `json:"mine,omitempty"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Payout     decimal.Decimal `json:"payout"`
	Result     RouletteResult  `json:"result,omitempty"`
	WinAmount  decimal.Decimal `json:"win_amount"`
	Balance    decimal.Decimal `json:"balance"`
	Round      *MinesRoundView `json:"round,omitempty"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// MinesRoundView describes a round still open on the ledger. Mines is set
// only when layouts are exposed to the client.
type MinesRoundView struct {
	RoundID    string          `json:"round_id"`
	BetAmount  decimal.Decimal `json:"bet_amount"`
	MinesCount int             `json:"mines_count"`
	Revealed   []int           `json:"revealed"`
	Mines      []int           `json:"mines,omitempty"`
}

// Staff

const (
	StaffActionProcess = "process_request"
	StaffActionManage  = "manage_balance"
)

type BalanceOperation string

const (
	OperationAdd      BalanceOperation = "add"
	OperationSubtract BalanceOperation = "subtract"
)

func (o BalanceOperation) Valid() bool {
	return o == OperationAdd || o == OperationSubtract
}

type StaffRequest struct {
	Action    string           `json:"action"`
	RequestID int64            `json:"request_id,omitempty"`
	Decision  Decision         `json:"decision,omitempty"`
	Amount    decimal.Decimal  `json:"amount"`
	Operation BalanceOperation `json:"operation,omitempty"`
	Currency  Currency         `json:"currency,omitempty"`
	FullName  string           `json:"full_name,omitempty"`
	UserID    int64            `json:"user_id,omitempty"`
}

type StaffResponse struct {
	Success bool            `json:"success"`
	Balance decimal.Decimal `json:"balance"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}
