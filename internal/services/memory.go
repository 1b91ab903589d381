package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"casino-miniapp/internal/models"
)

// MemoryStore keeps the ledger in process memory. A single mutex makes every
// operation atomic.
type MemoryStore struct {
	mu sync.Mutex

	accounts  map[int64]*models.StoredAccount
	byName    map[string]int64
	nonces    map[int64]int64
	requests  map[int64]*models.StoredRequest
	rounds    map[string]*models.MinesRound
	active    map[int64]string
	games     map[int64][]*models.GameRecord
	rateLimit map[string]*rateWindow

	accountSeq int64
	requestSeq int64
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[int64]*models.StoredAccount),
		byName:    make(map[string]int64),
		nonces:    make(map[int64]int64),
		requests:  make(map[int64]*models.StoredRequest),
		rounds:    make(map[string]*models.MinesRound),
		active:    make(map[int64]string),
		games:     make(map[int64][]*models.GameRecord),
		rateLimit: make(map[string]*rateWindow),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) CreateAccount(ctx context.Context, account *models.StoredAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[account.FullName]; taken {
		return ErrNameTaken
	}
	s.accountSeq++
	account.ID = s.accountSeq

	stored := *account
	s.accounts[stored.ID] = &stored
	s.byName[stored.FullName] = stored.ID
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id int64) (*models.StoredAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountLocked(id)
}

func (s *MemoryStore) accountLocked(id int64) (*models.StoredAccount, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *MemoryStore) GetAccountByName(ctx context.Context, fullName string) (*models.StoredAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[fullName]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return s.accountLocked(id)
}

func (s *MemoryStore) Move(ctx context.Context, userID int64, m models.Movement) (*models.StoredAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.moveLocked(userID, m); err != nil {
		return nil, err
	}
	return s.accountLocked(userID)
}

func (s *MemoryStore) moveLocked(userID int64, m models.Movement) error {
	account, ok := s.accounts[userID]
	if !ok {
		return ErrAccountNotFound
	}
	if account.BalanceRUB < m.DebitRUB || account.BalanceUSD < m.DebitUSD {
		return ErrInsufficientFunds
	}
	account.BalanceRUB += m.CreditRUB - m.DebitRUB
	account.BalanceUSD += m.CreditUSD - m.DebitUSD
	return nil
}

func (s *MemoryStore) NextNonce(ctx context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[userID]++
	return s.nonces[userID], nil
}

func (s *MemoryStore) CreateRequest(ctx context.Context, req *models.StoredRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestSeq++
	req.ID = s.requestSeq
	stored := *req
	s.requests[stored.ID] = &stored
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id int64) (*models.StoredRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	copied := *req
	return &copied, nil
}

func (s *MemoryStore) UserRequests(ctx context.Context, userID int64) ([]*models.StoredRequest, error) {
	return s.filterRequests(func(r *models.StoredRequest) bool { return r.UserID == userID }, MaxHistory), nil
}

func (s *MemoryStore) PendingRequests(ctx context.Context) ([]*models.StoredRequest, error) {
	return s.filterRequests(func(r *models.StoredRequest) bool {
		return r.Status == models.RequestStatusPending
	}, 0), nil
}

// filterRequests returns matches newest first, at most limit when limit > 0.
func (s *MemoryStore) filterRequests(keep func(*models.StoredRequest) bool, limit int) []*models.StoredRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.StoredRequest, 0)
	for _, req := range s.requests {
		if keep(req) {
			copied := *req
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) DecideRequest(ctx context.Context, id int64, decision models.Decision, staffID int64, at time.Time) (*models.StoredRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.Status != models.RequestStatusPending {
		return nil, ErrAlreadyProcessed
	}

	if decision == models.RequestStatusApproved {
		m := models.Credit(req.Currency, req.Amount)
		if req.Type == models.RequestTypeWithdraw {
			m = models.Debit(req.Currency, req.Amount)
		}
		if err := s.moveLocked(req.UserID, m); err != nil {
			return nil, err
		}
	}

	req.Status = decision
	req.ProcessedBy = staffID
	req.ProcessedAt = at.UnixMilli()

	copied := *req
	return &copied, nil
}

func (s *MemoryStore) OpenRound(ctx context.Context, round *models.MinesRound) (*models.StoredAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[round.UserID]; ok {
		return nil, ErrRoundActive
	}
	if err := s.moveLocked(round.UserID, models.Movement{DebitRUB: round.BetAmount}); err != nil {
		return nil, err
	}

	s.rounds[round.ID] = cloneRound(round)
	s.active[round.UserID] = round.ID
	return s.accountLocked(round.UserID)
}

func (s *MemoryStore) GetRound(ctx context.Context, id string) (*models.MinesRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[id]
	if !ok {
		return nil, ErrRoundNotFound
	}
	return cloneRound(round), nil
}

func (s *MemoryStore) ActiveRound(ctx context.Context, userID int64) (*models.MinesRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.active[userID]
	if !ok {
		return nil, nil
	}
	return cloneRound(s.rounds[id]), nil
}

func (s *MemoryStore) UpdateRound(ctx context.Context, round *models.MinesRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rounds[round.ID]
	if !ok {
		return ErrRoundNotFound
	}
	if stored.Status != models.RoundStatusActive {
		return ErrRoundFinished
	}
	s.rounds[round.ID] = cloneRound(round)
	return nil
}

func (s *MemoryStore) SettleRound(ctx context.Context, round *models.MinesRound, payout int64) (*models.StoredAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rounds[round.ID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	if stored.Status != models.RoundStatusActive {
		return nil, ErrRoundFinished
	}

	if payout > 0 {
		if err := s.moveLocked(round.UserID, models.Movement{CreditRUB: payout}); err != nil {
			return nil, err
		}
	}
	s.rounds[round.ID] = cloneRound(round)
	delete(s.active, round.UserID)
	return s.accountLocked(round.UserID)
}

func (s *MemoryStore) StaleRounds(ctx context.Context, before time.Time) ([]*models.MinesRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []*models.MinesRound
	for _, id := range s.active {
		round := s.rounds[id]
		if round.UpdatedAt.Before(before) {
			stale = append(stale, cloneRound(round))
		}
	}
	return stale, nil
}

func (s *MemoryStore) RecordGame(ctx context.Context, record *models.GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.games[record.UserID], record)
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	s.games[record.UserID] = history
	return nil
}

func (s *MemoryStore) GameHistory(ctx context.Context, userID int64, limit int64) ([]*models.GameRecord, error) {
	if limit <= 0 || limit > MaxHistory {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.games[userID]
	out := make([]*models.GameRecord, 0, limit)
	for i := len(history) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

func (s *MemoryStore) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf(KeyRateLimit, userID, action)
	now := time.Now()
	w, ok := s.rateLimit[key]
	if !ok || now.After(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		s.rateLimit[key] = w
	}
	w.count++
	return w.count <= limit, nil
}

func cloneRound(r *models.MinesRound) *models.MinesRound {
	copied := *r
	copied.Mines = append([]int(nil), r.Mines...)
	copied.Revealed = append([]int(nil), r.Revealed...)
	return &copied
}
