package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyUSD Currency = "USD"

	// PrimaryCurrency is the currency bets are placed in.
	PrimaryCurrency = CurrencyRUB
)

// DefaultExchangeRate is the number of RUB units per USD unit.
var DefaultExchangeRate = decimal.NewFromInt(95)

func (c Currency) Valid() bool {
	return c == CurrencyRUB || c == CurrencyUSD
}

// Other returns the opposite side of an exchange.
func (c Currency) Other() Currency {
	if c == CurrencyRUB {
		return CurrencyUSD
	}
	return CurrencyRUB
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if !c.Valid() {
		return "", &ValidationError{Field: "currency", Reason: fmt.Sprintf("unsupported currency %q", s)}
	}
	return c, nil
}

// Balances is the pair of balances an account holds. It is always replaced as
// a whole, never merged field by field.
type Balances struct {
	RUB decimal.Decimal `json:"balance_rub"`
	USD decimal.Decimal `json:"balance_usd"`
}

func (b Balances) Of(c Currency) decimal.Decimal {
	if c == CurrencyUSD {
		return b.USD
	}
	return b.RUB
}

func (b Balances) String() string {
	return fmt.Sprintf("%s RUB / %s USD", b.RUB.StringFixed(2), b.USD.StringFixed(2))
}

type RequestType string

const (
	RequestTypeDeposit  RequestType = "deposit"
	RequestTypeWithdraw RequestType = "withdraw"
)

func (t RequestType) Valid() bool {
	return t == RequestTypeDeposit || t == RequestTypeWithdraw
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Terminal reports whether the status can no longer change.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// Decision is the subset of statuses a staff member may set.
type Decision = RequestStatus

func ValidDecision(d Decision) bool {
	return d.Terminal()
}

// PendingRequest is a deposit or withdraw intent awaiting a staff decision.
type PendingRequest struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id,omitempty"`
	FullName    string          `json:"full_name"`
	Type        RequestType     `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	Status      RequestStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedBy int64           `json:"processed_by,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}
