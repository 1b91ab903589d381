// Package notify surfaces transient user-facing notifications, the terminal
// counterpart of a toast.
package notify

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"casino-miniapp/internal/games"
	"casino-miniapp/internal/inflight"
	"casino-miniapp/internal/ledger"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/session"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type Notifier interface {
	Notify(level Level, msg string)
}

func init() {
	ru := language.Russian
	message.SetString(ru, "Connection error, try again", "Ошибка соединения, попробуйте снова")
	message.SetString(ru, "Please wait for the previous action to finish", "Дождитесь завершения предыдущего действия")
	message.SetString(ru, "Finish the current round first", "Сначала завершите текущий раунд")
	message.SetString(ru, "Please log in", "Войдите в аккаунт")
	message.SetString(ru, "Could not save your session", "Не удалось сохранить сессию")
	message.SetString(ru, "Invalid %s: %s", "Неверное поле %s: %s")
	message.SetString(ru, "Balance: %s", "Баланс: %s")
	message.SetString(ru, "Resumed round %s", "Раунд %s продолжен")
}

// Terminal writes one line per notification, localized with an x/text printer.
type Terminal struct {
	mu      sync.Mutex
	w       io.Writer
	printer *message.Printer
}

func NewTerminal(w io.Writer, locale string) *Terminal {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Terminal{w: w, printer: message.NewPrinter(tag)}
}

func (t *Terminal) Notify(level Level, msg string) {
	var prefix string
	switch level {
	case LevelSuccess:
		prefix = "[ok]"
	case LevelError:
		prefix = "[!]"
	default:
		prefix = "[i]"
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.w, "%s %s\n", prefix, msg); err != nil {
		log.WithError(err).Warn("Failed to write notification")
	}
}

// Printer exposes the localized printer for callers composing messages.
func (t *Terminal) Printer() *message.Printer {
	return t.printer
}

// Amount formats a money value with locale digit grouping, e.g. "1,234.50 RUB".
func (t *Terminal) Amount(d decimal.Decimal, c models.Currency) string {
	return FormatAmount(t.printer, d, c)
}

func FormatAmount(p *message.Printer, d decimal.Decimal, c models.Currency) string {
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	intPart, err := decimal.NewFromString(whole)
	if err != nil {
		return fixed + " " + string(c)
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + p.Sprintf("%d", intPart.IntPart()) + "." + frac + " " + string(c)
}

// Describe turns an error into the text shown to the user.
func Describe(p *message.Printer, err error) string {
	var verr *models.ValidationError
	var rerr *ledger.RejectedError
	var terr *ledger.TransportError
	var perr *session.PersistenceError

	switch {
	case errors.As(err, &verr):
		return p.Sprintf("Invalid %s: %s", verr.Field, verr.Reason)
	case errors.As(err, &rerr):
		return rerr.Message
	case errors.As(err, &terr):
		return p.Sprintf("Connection error, try again")
	case errors.As(err, &perr):
		return p.Sprintf("Could not save your session")
	case errors.Is(err, inflight.ErrInFlight):
		return p.Sprintf("Please wait for the previous action to finish")
	case errors.Is(err, games.ErrRoundActive):
		return p.Sprintf("Finish the current round first")
	case errors.Is(err, session.ErrNoSession):
		return p.Sprintf("Please log in")
	default:
		return err.Error()
	}
}

// Error notifies err at error level.
func (t *Terminal) Error(err error) {
	t.Notify(LevelError, Describe(t.printer, err))
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

type Entry struct {
	Level   Level
	Message string
}

func (r *Recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg})
	r.mu.Unlock()
}

func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}
