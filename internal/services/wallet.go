package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/models"
)

type WalletService struct {
	store Store
	rate  decimal.Decimal
}

func NewWalletService(store Store, rate decimal.Decimal) *WalletService {
	if !rate.IsPositive() {
		rate = models.DefaultExchangeRate
	}
	return &WalletService{store: store, rate: rate}
}

func (s *WalletService) Balance(ctx context.Context, userID int64) (models.Balances, error) {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return models.Balances{}, err
	}
	return account.Balances(), nil
}

// SubmitRequest files a pending deposit or withdraw. Nothing moves until staff
// approve it.
func (s *WalletService) SubmitRequest(ctx context.Context, userID int64, typ models.RequestType, amount decimal.Decimal, currency models.Currency) (*models.StoredRequest, error) {
	if !typ.Valid() {
		return nil, &models.ValidationError{Field: "type", Reason: "must be deposit or withdraw"}
	}
	if currency == "" {
		currency = models.PrimaryCurrency
	}
	if !currency.Valid() {
		return nil, &models.ValidationError{Field: "currency", Reason: "unsupported currency"}
	}
	minor, err := models.AmountToMinor("amount", amount)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, userID); err != nil {
		return nil, err
	}

	req := &models.StoredRequest{
		UserID:    userID,
		Type:      typ,
		Amount:    minor,
		Currency:  currency,
		Status:    models.RequestStatusPending,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"request_id": req.ID,
		"account_id": userID,
		"type":       typ,
		"amount":     amount.String(),
	}).Info("Request created")
	return req, nil
}

func (s *WalletService) Requests(ctx context.Context, userID int64) ([]models.PendingRequest, error) {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.UserRequests(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.PendingRequest, 0, len(stored))
	for _, req := range stored {
		views = append(views, req.View(account.FullName))
	}
	return views, nil
}

// Exchange converts at the fixed rate. The debit and the credit are applied
// in one step.
func (s *WalletService) Exchange(ctx context.Context, userID int64, amount decimal.Decimal, from, to models.Currency) (models.Balances, error) {
	if !from.Valid() || !to.Valid() || from == to {
		return models.Balances{}, &models.ValidationError{Field: "currency", Reason: "exchange must be between RUB and USD"}
	}

	debit, err := models.AmountToMinor("amount", amount)
	if err != nil {
		return models.Balances{}, err
	}

	var converted decimal.Decimal
	if from == models.CurrencyUSD {
		converted = amount.Mul(s.rate)
	} else {
		converted = amount.Div(s.rate)
	}
	credit := models.ToMinor(converted)
	if credit <= 0 {
		return models.Balances{}, &models.ValidationError{Field: "amount", Reason: "too small to exchange"}
	}

	m := models.Debit(from, debit)
	if to == models.CurrencyUSD {
		m.CreditUSD = credit
	} else {
		m.CreditRUB = credit
	}

	account, err := s.store.Move(ctx, userID, m)
	if err != nil {
		return models.Balances{}, err
	}

	log.WithFields(log.Fields{
		"account_id": userID,
		"from":       from,
		"amount":     amount.String(),
	}).Info("Currency exchanged")
	return account.Balances(), nil
}
