package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/models"
)

var ErrNoSession = errors.New("not logged in")

// Session is the client's application state: the single cached account. It
// is written only by Login, Logout and the Reconciler; everything else reads
// snapshots.
type Session struct {
	store Store

	mu      sync.RWMutex
	account *models.Account
	epoch   uint64 // bumped on every login/logout
	issued  uint64
	applied uint64

	listeners []func(models.Account, bool)
}

func New(store Store) *Session {
	return &Session{store: store}
}

// Open restores the account saved by a previous run, if any.
func (s *Session) Open(ctx context.Context) error {
	account, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	s.mu.Lock()
	s.account = account
	s.epoch++
	s.mu.Unlock()

	if account != nil {
		log.WithField("account_id", account.ID).Debug("Session restored")
	}
	return nil
}

// Account returns a snapshot of the cached account.
func (s *Session) Account() (models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return models.Account{}, false
	}
	return *s.account, true
}

// Balances returns both balances from the same snapshot.
func (s *Session) Balances() (models.Balances, error) {
	account, ok := s.Account()
	if !ok {
		return models.Balances{}, ErrNoSession
	}
	return account.Balances(), nil
}

func (s *Session) Login(ctx context.Context, account models.Account) error {
	if err := s.store.Save(ctx, account); err != nil {
		return &PersistenceError{Err: err}
	}

	s.mu.Lock()
	s.account = &account
	s.epoch++
	s.applied = 0
	s.issued = 0
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, account, true)
	return nil
}

// Logout clears the stored record. Tickets issued before the logout are void.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return &PersistenceError{Err: err}
	}

	s.mu.Lock()
	s.account = nil
	s.epoch++
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, models.Account{}, false)
	return nil
}

// Subscribe registers fn to be called after every committed change. The
// second argument is false after logout.
func (s *Session) Subscribe(fn func(models.Account, bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) Reconciler() *Reconciler {
	return &Reconciler{session: s}
}

func notify(listeners []func(models.Account, bool), account models.Account, loggedIn bool) {
	for _, fn := range listeners {
		fn(account, loggedIn)
	}
}
