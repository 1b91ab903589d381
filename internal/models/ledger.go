package models

import "time"

// StoredAccount is the ledger's account record. Balances are kept in minor
// units so every mutation is integer arithmetic.
type StoredAccount struct {
	ID         int64     `json:"id"`
	FullName   string    `json:"full_name"`
	PinHash    string    `json:"pin_hash"`
	IsStaff    bool      `json:"is_staff"`
	BalanceRUB int64     `json:"balance_rub"`
	BalanceUSD int64     `json:"balance_usd"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *StoredAccount) Balances() Balances {
	return Balances{RUB: FromMinor(a.BalanceRUB), USD: FromMinor(a.BalanceUSD)}
}

func (a *StoredAccount) BalanceOf(c Currency) int64 {
	if c == CurrencyUSD {
		return a.BalanceUSD
	}
	return a.BalanceRUB
}

// Account is the public view sent to clients.
func (a *StoredAccount) Account() Account {
	b := a.Balances()
	return Account{
		ID:         a.ID,
		FullName:   a.FullName,
		IsStaff:    a.IsStaff,
		BalanceRUB: b.RUB,
		BalanceUSD: b.USD,
	}
}

// Movement is one atomic change to an account's balances. Debits are checked
// against the current balance before anything is applied.
type Movement struct {
	DebitRUB  int64
	CreditRUB int64
	DebitUSD  int64
	CreditUSD int64
}

// Debit moves amount out of currency c.
func Debit(c Currency, amount int64) Movement {
	if c == CurrencyUSD {
		return Movement{DebitUSD: amount}
	}
	return Movement{DebitRUB: amount}
}

// Credit moves amount into currency c.
func Credit(c Currency, amount int64) Movement {
	if c == CurrencyUSD {
		return Movement{CreditUSD: amount}
	}
	return Movement{CreditRUB: amount}
}

// StoredRequest is the ledger's deposit/withdraw request record.
type StoredRequest struct {
	ID          int64         `json:"id"`
	UserID      int64         `json:"user_id"`
	Type        RequestType   `json:"type"`
	Amount      int64         `json:"amount"` // minor units
	Currency    Currency      `json:"currency"`
	Status      RequestStatus `json:"status"`
	CreatedAt   int64         `json:"created_at"` // unix millis
	ProcessedBy int64         `json:"processed_by,omitempty"`
	ProcessedAt int64         `json:"processed_at,omitempty"`
}

// View renders the record for the wire, with the requester's display name.
func (r *StoredRequest) View(fullName string) PendingRequest {
	view := PendingRequest{
		ID:          r.ID,
		UserID:      r.UserID,
		FullName:    fullName,
		Type:        r.Type,
		Amount:      FromMinor(r.Amount),
		Currency:    r.Currency,
		Status:      r.Status,
		CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
		ProcessedBy: r.ProcessedBy,
	}
	if r.ProcessedAt != 0 {
		at := time.UnixMilli(r.ProcessedAt).UTC()
		view.ProcessedAt = &at
	}
	return view
}
