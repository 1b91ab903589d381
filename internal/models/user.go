package models

import "github.com/shopspring/decimal"

// Account is the user record returned by the auth endpoint and cached by the
// client between round-trips.
type Account struct {
	ID         int64           `json:"id"`
	FullName   string          `json:"full_name"`
	IsStaff    bool            `json:"is_staff"`
	BalanceRUB decimal.Decimal `json:"balance_rub"`
	BalanceUSD decimal.Decimal `json:"balance_usd"`

	// Token is the session token issued at login, sent back as X-Auth-Token.
	Token string `json:"token,omitempty"`
}

func (a Account) Balances() Balances {
	return Balances{RUB: a.BalanceRUB, USD: a.BalanceUSD}
}

// WithBalances returns a copy of the account carrying b.
func (a Account) WithBalances(b Balances) Account {
	a.BalanceRUB = b.RUB
	a.BalanceUSD = b.USD
	return a
}
