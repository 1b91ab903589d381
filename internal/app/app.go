// Package app is the client facade: it owns the session and the game and
// staff controllers, and reports every outcome through a notifier.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"casino-miniapp/internal/exchange"
	"casino-miniapp/internal/games"
	"casino-miniapp/internal/inflight"
	"casino-miniapp/internal/ledger"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/notify"
	"casino-miniapp/internal/session"
	"casino-miniapp/internal/staff"
)

var ErrNotStaff = errors.New("staff access required")

// API is the remote ledger as the client sees it.
type API interface {
	Authenticate(ctx context.Context, req models.AuthRequest) (*models.Account, string, error)
	Balance(ctx context.Context) (models.Balances, error)
	MyRequests(ctx context.Context) ([]models.PendingRequest, error)
	SubmitRequest(ctx context.Context, typ models.RequestType, amount decimal.Decimal, currency models.Currency) (int64, error)
	Exchange(ctx context.Context, amount decimal.Decimal, from, to models.Currency) (models.Balances, string, error)

	games.MinesAPI
	games.RouletteAPI
	staff.API
}

type Options struct {
	SpinDelay    time.Duration
	PollInterval time.Duration
	ExchangeRate decimal.Decimal
	Locale       string
}

type Client struct {
	api        API
	session    *session.Session
	reconciler *session.Reconciler
	guard      *inflight.Guard
	calculator *exchange.Calculator
	notifier   notify.Notifier
	printer    *message.Printer
	opts       Options

	mu       sync.Mutex
	mines    *games.Mines
	roulette *games.Roulette
	queue    *staff.QueueSync
	unwatch  func()
}

func New(api API, sess *session.Session, notifier notify.Notifier, opts Options) *Client {
	tag, err := language.Parse(opts.Locale)
	if err != nil {
		tag = language.English
	}

	c := &Client{
		api:        api,
		session:    sess,
		reconciler: sess.Reconciler(),
		guard:      inflight.NewGuard(),
		calculator: exchange.NewCalculator(opts.ExchangeRate),
		notifier:   notifier,
		printer:    message.NewPrinter(tag),
		opts:       opts,
	}
	c.resetControllers()
	return c
}

// SessionCredentials feeds the cached account identity to the ledger client.
func SessionCredentials(sess *session.Session) ledger.Credentials {
	return func() (int64, string, bool) {
		account, ok := sess.Account()
		return account.ID, account.Token, ok
	}
}

// resetControllers gives a new session fresh round state. A running queue
// watch belongs to the old session and is stopped first.
func (c *Client) resetControllers() {
	c.stopWatch()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mines = games.NewMines(c.api, c.session, c.guard)
	c.roulette = games.NewRoulette(c.api, c.session, c.guard, c.opts.SpinDelay)
	c.queue = staff.NewQueueSync(c.api, c.guard, c.opts.PollInterval)
}

func (c *Client) Session() *session.Session {
	return c.session
}

func (c *Client) Register(ctx context.Context, fullName, pin string) (models.Account, error) {
	return c.authenticate(ctx, models.AuthRegister, fullName, pin)
}

func (c *Client) Login(ctx context.Context, fullName, pin string) (models.Account, error) {
	return c.authenticate(ctx, models.AuthLogin, fullName, pin)
}

func (c *Client) authenticate(ctx context.Context, action models.AuthAction, fullName, pin string) (models.Account, error) {
	if err := models.ValidateCredentials(fullName, pin); err != nil {
		return models.Account{}, c.fail(string(action), err)
	}

	account, msg, err := c.api.Authenticate(ctx, models.AuthRequest{
		Action:   action,
		FullName: fullName,
		PinCode:  pin,
	})
	if err != nil {
		return models.Account{}, c.fail(string(action), err)
	}

	if err := c.session.Login(ctx, *account); err != nil {
		return models.Account{}, c.fail(string(action), err)
	}
	c.resetControllers()

	log.WithFields(log.Fields{
		"account_id": account.ID,
		"is_staff":   account.IsStaff,
	}).Info("Logged in")

	if msg == "" {
		msg = c.printer.Sprintf("Welcome, %s", account.FullName)
	}
	c.notifier.Notify(notify.LevelSuccess, msg)
	return *account, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.session.Logout(ctx); err != nil {
		return c.fail("logout", err)
	}
	c.resetControllers()
	c.notifier.Notify(notify.LevelInfo, c.printer.Sprintf("Logged out"))
	return nil
}

// SyncBalance fetches both balances from the ledger and reconciles them.
func (c *Client) SyncBalance(ctx context.Context) (models.Balances, error) {
	if _, err := c.session.Balances(); err != nil {
		return models.Balances{}, c.fail("sync balance", err)
	}

	ticket := c.reconciler.Ticket()
	b, err := c.api.Balance(ctx)
	if err != nil {
		return models.Balances{}, c.fail("sync balance", err)
	}
	if _, err := c.reconciler.Apply(ctx, ticket, b); err != nil {
		return models.Balances{}, c.fail("sync balance", err)
	}

	current, _ := c.session.Balances()
	return current, nil
}

// SubmitRequest files a deposit or withdraw request in the primary currency.
// Balances change only once staff approve it.
func (c *Client) SubmitRequest(ctx context.Context, typ models.RequestType, amount decimal.Decimal) (int64, error) {
	if !typ.Valid() {
		return 0, c.fail("submit request", &models.ValidationError{Field: "type", Reason: "must be deposit or withdraw"})
	}
	if err := models.ValidateAmount("amount", amount); err != nil {
		return 0, c.fail("submit request", err)
	}
	balances, err := c.session.Balances()
	if err != nil {
		return 0, c.fail("submit request", err)
	}
	if typ == models.RequestTypeWithdraw && amount.GreaterThan(balances.Of(models.PrimaryCurrency)) {
		return 0, c.fail("submit request", &models.ValidationError{Field: "amount", Reason: "insufficient funds"})
	}

	release, err := c.guard.Acquire("wallet.request")
	if err != nil {
		return 0, c.fail("submit request", err)
	}
	defer release()

	id, err := c.api.SubmitRequest(ctx, typ, amount, models.PrimaryCurrency)
	if err != nil {
		return 0, c.fail("submit request", err)
	}

	log.WithFields(log.Fields{
		"request_id": id,
		"type":       typ,
		"amount":     amount.String(),
	}).Info("Request submitted")
	c.notifier.Notify(notify.LevelSuccess, c.printer.Sprintf("Request #%d submitted", id))
	return id, nil
}

func (c *Client) MyRequests(ctx context.Context) ([]models.PendingRequest, error) {
	if _, err := c.session.Balances(); err != nil {
		return nil, c.fail("list requests", err)
	}
	list, err := c.api.MyRequests(ctx)
	if err != nil {
		return nil, c.fail("list requests", err)
	}
	return list, nil
}

// PreviewExchange is the local, display-only conversion.
func (c *Client) PreviewExchange(amount decimal.Decimal, from models.Currency) exchange.Preview {
	return c.calculator.Preview(amount, from)
}

// Exchange converts amount out of from into the other currency. The balances
// applied are the ledger's, never the preview.
func (c *Client) Exchange(ctx context.Context, amount decimal.Decimal, from models.Currency) (models.Balances, error) {
	if !from.Valid() {
		return models.Balances{}, c.fail("exchange", &models.ValidationError{Field: "currency", Reason: "unsupported currency"})
	}
	if err := models.ValidateAmount("amount", amount); err != nil {
		return models.Balances{}, c.fail("exchange", err)
	}
	balances, err := c.session.Balances()
	if err != nil {
		return models.Balances{}, c.fail("exchange", err)
	}
	if amount.GreaterThan(balances.Of(from)) {
		return models.Balances{}, c.fail("exchange", &models.ValidationError{Field: "amount", Reason: "insufficient funds"})
	}

	release, err := c.guard.Acquire("wallet.exchange")
	if err != nil {
		return models.Balances{}, c.fail("exchange", err)
	}
	defer release()

	ticket := c.reconciler.Ticket()
	confirmed, msg, err := c.api.Exchange(ctx, amount, from, from.Other())
	if err != nil {
		return models.Balances{}, c.fail("exchange", err)
	}
	if _, err := c.reconciler.Apply(ctx, ticket, confirmed); err != nil {
		return models.Balances{}, c.fail("exchange", err)
	}

	if msg == "" {
		msg = c.printer.Sprintf("Exchanged %s %s", amount.StringFixed(2), from)
	}
	c.notifier.Notify(notify.LevelSuccess, msg)
	return confirmed, nil
}

func (c *Client) Mines() *games.Mines {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mines
}

func (c *Client) Roulette() *games.Roulette {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roulette
}

// Staff returns the request queue for staff accounts.
func (c *Client) Staff() (*staff.QueueSync, error) {
	account, ok := c.session.Account()
	if !ok {
		return nil, session.ErrNoSession
	}
	if !account.IsStaff {
		return nil, ErrNotStaff
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue, nil
}

// WatchQueue polls the staff queue in the background and hands every new
// snapshot to onChange. The watch ends when ctx is done, when stop is called,
// or when the session changes.
func (c *Client) WatchQueue(ctx context.Context, onChange func([]models.PendingRequest)) (stop func(), err error) {
	queue, err := c.Staff()
	if err != nil {
		return nil, c.fail("watch queue", err)
	}
	c.stopWatch()

	if onChange != nil {
		queue.OnChange(onChange)
	}
	stop = queue.Start(ctx)

	c.mu.Lock()
	c.unwatch = stop
	c.mu.Unlock()
	return stop, nil
}

func (c *Client) stopWatch() {
	c.mu.Lock()
	stop := c.unwatch
	c.unwatch = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// ResumeMines reattaches to a round the ledger still holds open.
func (c *Client) ResumeMines(ctx context.Context) (games.MinesRound, bool, error) {
	round, ok, err := c.Mines().Resume(ctx)
	if err != nil {
		return round, false, c.fail("resume mines", err)
	}
	if ok {
		c.notifier.Notify(notify.LevelInfo, c.printer.Sprintf("Resumed round %s", round.ID))
	}
	return round, ok, nil
}

func (c *Client) StartMines(ctx context.Context, bet decimal.Decimal, minesCount int) (games.MinesRound, error) {
	round, err := c.Mines().Start(ctx, bet, minesCount)
	if err != nil {
		return round, c.fail("start mines", err)
	}
	return round, nil
}

func (c *Client) RevealCell(ctx context.Context, cell int) (games.RevealResult, error) {
	res, err := c.Mines().Reveal(ctx, cell)
	if err != nil {
		return res, c.fail("reveal cell", err)
	}
	if res.Mine {
		c.notifier.Notify(notify.LevelError, c.printer.Sprintf("Mine! You lost %s", res.Round.Bet.StringFixed(2)))
	}
	return res, nil
}

func (c *Client) CashOut(ctx context.Context) (games.CashoutResult, error) {
	res, err := c.Mines().CashOut(ctx)
	if err != nil {
		return res, c.fail("cash out", err)
	}
	if res.Changed {
		c.notifier.Notify(notify.LevelSuccess, c.printer.Sprintf("You won %s", notify.FormatAmount(c.printer, res.Payout, models.PrimaryCurrency)))
	}
	return res, nil
}

func (c *Client) Spin(ctx context.Context, bet decimal.Decimal) (games.RouletteOutcome, error) {
	outcome, err := c.Roulette().Spin(ctx, bet)
	if err != nil {
		return outcome, c.fail("spin roulette", err)
	}

	msg := outcome.Message
	if msg == "" {
		if outcome.Result == models.RouletteWin {
			msg = c.printer.Sprintf("You won %s", notify.FormatAmount(c.printer, outcome.WinAmount, models.PrimaryCurrency))
		} else {
			msg = c.printer.Sprintf("You lost %s", notify.FormatAmount(c.printer, bet, models.PrimaryCurrency))
		}
	}
	level := notify.LevelInfo
	if outcome.Result == models.RouletteWin {
		level = notify.LevelSuccess
	}
	c.notifier.Notify(level, msg)
	return outcome, nil
}

// Decide approves or rejects a pending request from the staff queue.
func (c *Client) Decide(ctx context.Context, requestID int64, decision models.Decision) error {
	queue, err := c.Staff()
	if err != nil {
		return c.fail("decide request", err)
	}
	msg, err := queue.Decide(ctx, requestID, decision)
	if err != nil {
		return c.fail("decide request", err)
	}
	if msg == "" {
		msg = c.printer.Sprintf("Request #%d %s", requestID, decision)
	}
	c.notifier.Notify(notify.LevelSuccess, msg)
	return nil
}

// AdjustBalance changes an account's balance directly. When staff adjust
// their own account the new balance is synced straight away.
func (c *Client) AdjustBalance(ctx context.Context, target staff.Target, amount decimal.Decimal, op models.BalanceOperation, currency models.Currency) error {
	queue, err := c.Staff()
	if err != nil {
		return c.fail("adjust balance", err)
	}
	resp, err := queue.AdjustBalance(ctx, target, amount, op, currency)
	if err != nil {
		return c.fail("adjust balance", err)
	}

	msg := resp.Message
	if msg == "" {
		msg = c.printer.Sprintf("Balance of %s updated", target)
	}
	c.notifier.Notify(notify.LevelSuccess, msg)

	if c.isSelf(target) {
		if _, err := c.SyncBalance(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) isSelf(target staff.Target) bool {
	account, ok := c.session.Account()
	if !ok {
		return false
	}
	switch t := target.(type) {
	case staff.ByID:
		return int64(t) == account.ID
	case staff.ByName:
		return t.String() == account.FullName
	}
	return false
}

func (c *Client) fail(op string, err error) error {
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		log.WithField("op", op).WithError(err).Warn("Action failed")
	}
	c.notifier.Notify(notify.LevelError, notify.Describe(c.printer, err))
	return err
}
