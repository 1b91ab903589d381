// Package staff is the staff-side request queue: a polled snapshot of pending
// deposit/withdraw requests plus the decide and direct-adjustment actions.
package staff

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"casino-miniapp/internal/inflight"
	"casino-miniapp/internal/models"
)

const DefaultPollInterval = 5 * time.Second

type API interface {
	PendingRequests(ctx context.Context) ([]models.PendingRequest, error)
	ProcessRequest(ctx context.Context, requestID int64, decision models.Decision) (string, error)
	ManageBalance(ctx context.Context, req models.StaffRequest) (*models.StaffResponse, error)
}

// QueueSync keeps the local pending-request snapshot. It is replaced wholesale
// on every successful refresh and left alone on failure.
type QueueSync struct {
	api      API
	guard    *inflight.Guard
	interval time.Duration

	mu        sync.RWMutex
	requests  []models.PendingRequest
	decided   map[int64]models.Decision
	fetchSeq  uint64
	installed uint64
	onChange  func([]models.PendingRequest)
}

func NewQueueSync(api API, guard *inflight.Guard, interval time.Duration) *QueueSync {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &QueueSync{
		api:      api,
		guard:    guard,
		interval: interval,
		decided:  make(map[int64]models.Decision),
	}
}

// OnChange registers fn to receive every newly installed snapshot.
func (q *QueueSync) OnChange(fn func([]models.PendingRequest)) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Requests returns a copy of the current snapshot.
func (q *QueueSync) Requests() []models.PendingRequest {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]models.PendingRequest(nil), q.requests...)
}

// Start refreshes immediately and then every interval until ctx is done or the
// returned stop function is called. Stop returns once the loop has exited.
func (q *QueueSync) Start(ctx context.Context) (stop func()) {
	ticker := time.NewTicker(q.interval)
	stopChan := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		log.WithField("interval", q.interval).Debug("Staff queue polling started")

		q.Refresh(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Debug("Staff queue polling stopped (context cancelled)")
				return
			case <-stopChan:
				log.Debug("Staff queue polling stopped")
				return
			case <-ticker.C:
				q.Refresh(ctx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stopChan)
			<-done
		})
	}
}

// Refresh fetches the queue. Failures keep the previous snapshot and are only
// logged at debug level.
func (q *QueueSync) Refresh(ctx context.Context) error {
	q.mu.Lock()
	q.fetchSeq++
	seq := q.fetchSeq
	q.mu.Unlock()

	list, err := q.api.PendingRequests(ctx)
	if err != nil {
		log.WithError(err).Debug("Staff queue refresh failed")
		return err
	}

	q.mu.Lock()
	if seq < q.installed {
		// a later fetch already landed
		q.mu.Unlock()
		return nil
	}
	snapshot := make([]models.PendingRequest, 0, len(list))
	for _, req := range list {
		if _, ok := q.decided[req.ID]; ok {
			continue
		}
		if req.Status != "" && req.Status != models.RequestStatusPending {
			continue
		}
		snapshot = append(snapshot, req)
	}
	q.requests = snapshot
	q.installed = seq
	onChange := q.onChange
	q.mu.Unlock()

	if onChange != nil {
		onChange(append([]models.PendingRequest(nil), snapshot...))
	}
	return nil
}

// Decide approves or rejects a request. On success the queue is refreshed
// straight away; on failure the snapshot is untouched.
func (q *QueueSync) Decide(ctx context.Context, requestID int64, decision models.Decision) (string, error) {
	if !models.ValidDecision(decision) {
		return "", &models.ValidationError{Field: "decision", Reason: "must be approved or rejected"}
	}

	release, err := q.guard.Acquire("staff.decide." + strconv.FormatInt(requestID, 10))
	if err != nil {
		return "", err
	}
	defer release()

	msg, err := q.api.ProcessRequest(ctx, requestID, decision)
	if err != nil {
		log.WithFields(log.Fields{
			"request_id": requestID,
			"decision":   decision,
		}).WithError(err).Warn("Request decision failed")
		return "", err
	}

	q.mu.Lock()
	q.decided[requestID] = decision
	q.mu.Unlock()

	log.WithFields(log.Fields{
		"request_id": requestID,
		"decision":   decision,
	}).Info("Request decided")

	// the decision stands even if this refresh fails
	_ = q.Refresh(ctx)
	return msg, nil
}

// AdjustBalance credits or debits an account directly, outside the request
// workflow. The ledger's resulting balance for the target is returned.
func (q *QueueSync) AdjustBalance(ctx context.Context, target Target, amount decimal.Decimal, op models.BalanceOperation, currency models.Currency) (*models.StaffResponse, error) {
	if target == nil {
		return nil, &models.ValidationError{Field: "target", Reason: "required"}
	}
	if err := models.ValidateAmount("amount", amount); err != nil {
		return nil, err
	}
	if !op.Valid() {
		return nil, &models.ValidationError{Field: "operation", Reason: "must be add or subtract"}
	}
	if currency == "" {
		currency = models.PrimaryCurrency
	}
	if !currency.Valid() {
		return nil, &models.ValidationError{Field: "currency", Reason: fmt.Sprintf("unknown currency %q", currency)}
	}

	req := models.StaffRequest{Amount: amount, Operation: op, Currency: currency}
	if err := target.fill(&req); err != nil {
		return nil, err
	}

	release, err := q.guard.Acquire("staff.adjust")
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := q.api.ManageBalance(ctx, req)
	if err != nil {
		log.WithFields(log.Fields{
			"target":    target.String(),
			"operation": op,
		}).WithError(err).Warn("Balance adjustment failed")
		return nil, err
	}

	log.WithFields(log.Fields{
		"target":    target.String(),
		"operation": op,
		"amount":    amount.String(),
		"currency":  currency,
	}).Info("Balance adjusted")
	return resp, nil
}
