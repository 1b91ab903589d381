package services

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/models"
)

// StaffService runs the back-office operations: the request queue and manual
// balance adjustments.
type StaffService struct {
	store Store
}

func NewStaffService(store Store) *StaffService {
	return &StaffService{store: store}
}

// Pending lists undecided requests, newest first, with requester names.
func (s *StaffService) Pending(ctx context.Context) ([]models.PendingRequest, error) {
	stored, err := s.store.PendingRequests(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string)
	views := make([]models.PendingRequest, 0, len(stored))
	for _, req := range stored {
		name, ok := names[req.UserID]
		if !ok {
			if account, err := s.store.GetAccount(ctx, req.UserID); err == nil {
				name = account.FullName
			}
			names[req.UserID] = name
		}
		views = append(views, req.View(name))
	}
	return views, nil
}

// Decide approves or rejects a pending request. Approval moves the amount in
// the same step as the status change, so a request is applied at most once.
func (s *StaffService) Decide(ctx context.Context, staffID, requestID int64, decision models.Decision) (*models.StoredRequest, error) {
	if !models.ValidDecision(decision) {
		return nil, &models.ValidationError{Field: "decision", Reason: "must be approved or rejected"}
	}

	req, err := s.store.DecideRequest(ctx, requestID, decision, staffID, time.Now())
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"request_id": requestID,
		"staff_id":   staffID,
		"decision":   decision,
	}).Info("Request processed")
	return req, nil
}

// ManageBalance credits or debits an account picked by id or by full name.
func (s *StaffService) ManageBalance(ctx context.Context, staffID int64, req models.StaffRequest) (*models.StoredAccount, error) {
	if !req.Operation.Valid() {
		return nil, &models.ValidationError{Field: "operation", Reason: "must be add or subtract"}
	}
	currency := req.Currency
	if currency == "" {
		currency = models.PrimaryCurrency
	}
	if !currency.Valid() {
		return nil, &models.ValidationError{Field: "currency", Reason: "unsupported currency"}
	}
	amount, err := models.AmountToMinor("amount", req.Amount)
	if err != nil {
		return nil, err
	}

	var target *models.StoredAccount
	switch {
	case req.UserID > 0:
		target, err = s.store.GetAccount(ctx, req.UserID)
	case strings.TrimSpace(req.FullName) != "":
		target, err = s.store.GetAccountByName(ctx, strings.TrimSpace(req.FullName))
	default:
		return nil, &models.ValidationError{Field: "user", Reason: "user_id or full_name required"}
	}
	if err != nil {
		return nil, err
	}

	m := models.Credit(currency, amount)
	if req.Operation == models.OperationSubtract {
		m = models.Debit(currency, amount)
	}
	account, err := s.store.Move(ctx, target.ID, m)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account_id": target.ID,
		"staff_id":   staffID,
		"operation":  req.Operation,
		"amount":     req.Amount.String(),
		"currency":   currency,
	}).Info("Balance adjusted")
	return account, nil
}
