package session

import (
	"context"
	"fmt"

	"casino-miniapp/internal/models"
)

// StorageKey is the fixed key the account record is stored under.
const StorageKey = "casino_user"

// Store is client-durable storage for the single cached account. Load returns
// nil, nil when nothing is stored (logged out).
type Store interface {
	Load(ctx context.Context) (*models.Account, error)
	Save(ctx context.Context, account models.Account) error
	Clear(ctx context.Context) error
}

// PersistenceError means the account record could not be written. Nothing is
// committed in memory when it is returned.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist session: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
