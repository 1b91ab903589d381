package session

import (
	"context"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/models"
)

// Ticket orders balance-affecting calls. Take one before the remote call and
// hand it to Apply with the confirmed result.
type Ticket struct {
	epoch uint64
	seq   uint64
}

// Reconciler is the only path by which a server-confirmed balance reaches the
// session.
type Reconciler struct {
	session *Session
}

func (r *Reconciler) Ticket() Ticket {
	s := r.session
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return Ticket{epoch: s.epoch, seq: s.issued}
}

// Apply replaces both balances and persists the account. It reports false
// without error when the ticket is older than one already applied, or was
// issued for a session that has since ended.
func (r *Reconciler) Apply(ctx context.Context, t Ticket, b models.Balances) (bool, error) {
	if err := checkBalance("balance_rub", b.RUB); err != nil {
		return false, err
	}
	if err := checkBalance("balance_usd", b.USD); err != nil {
		return false, err
	}
	return r.commit(ctx, t, func(models.Balances) models.Balances { return b })
}

// ApplyPrimary replaces the primary balance and keeps the secondary one, for
// responses that only carry the primary currency.
func (r *Reconciler) ApplyPrimary(ctx context.Context, t Ticket, primary decimal.Decimal) (bool, error) {
	if err := checkBalance("balance_rub", primary); err != nil {
		return false, err
	}
	return r.commit(ctx, t, func(cur models.Balances) models.Balances {
		cur.RUB = primary
		return cur
	})
}

func (r *Reconciler) commit(ctx context.Context, t Ticket, next func(models.Balances) models.Balances) (bool, error) {
	s := r.session

	// held across the store write so no reader sees a value that is not yet durable
	s.mu.Lock()
	if s.account == nil {
		s.mu.Unlock()
		return false, ErrNoSession
	}
	if t.epoch != s.epoch || t.seq < s.applied {
		log.WithFields(log.Fields{
			"ticket":  t.seq,
			"applied": s.applied,
		}).Debug("Discarding out-of-order balance update")
		s.mu.Unlock()
		return false, nil
	}

	updated := s.account.WithBalances(next(s.account.Balances()))
	if err := s.store.Save(ctx, updated); err != nil {
		s.mu.Unlock()
		return false, &PersistenceError{Err: err}
	}
	s.account = &updated
	s.applied = t.seq
	listeners := s.listeners
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"account_id": updated.ID,
		"balance":    updated.Balances().String(),
	}).Debug("Balance reconciled")

	notify(listeners, updated, true)
	return true, nil
}

func checkBalance(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return &models.ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}
