package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// wire amounts are JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// ValidationError is raised before any remote call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func GenerateRoundID() string {
	return fmt.Sprintf("mines_%s_%s", time.Now().Format("20060102"), uuid.NewString())
}

func GenerateRecordID() string {
	return fmt.Sprintf("game_%s_%d", time.Now().Format("20060102"), uuid.New().ID())
}

// ParseAmount parses user input the way the amount fields accept it.
func ParseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Reason: "not a number"}
	}
	return d, ValidateAmount(field, d)
}

func ValidateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: field, Reason: "must be greater than zero"}
	}
	if !amount.Equal(amount.Round(2)) {
		return &ValidationError{Field: field, Reason: "at most 2 decimal places"}
	}
	return nil
}

// AmountToMinor validates a request amount and converts it to minor units.
func AmountToMinor(field string, amount decimal.Decimal) (int64, error) {
	if err := ValidateAmount(field, amount); err != nil {
		return 0, err
	}
	return ToMinor(amount), nil
}

// ValidateBet checks bet > 0 and bet <= available.
func ValidateBet(bet, available decimal.Decimal) error {
	if err := ValidateAmount("bet", bet); err != nil {
		return err
	}
	if bet.GreaterThan(available) {
		return &ValidationError{Field: "bet", Reason: "insufficient funds"}
	}
	return nil
}

func ValidateMinesCount(n int) error {
	if n < MinMines || n > MaxMines {
		return &ValidationError{Field: "mines_count", Reason: fmt.Sprintf("must be between %d and %d", MinMines, MaxMines)}
	}
	return nil
}

func ValidateCell(cell int) error {
	if cell < 0 || cell >= MinesGridSize {
		return &ValidationError{Field: "cell", Reason: fmt.Sprintf("must be between 0 and %d", MinesGridSize-1)}
	}
	return nil
}

func ValidateCredentials(fullName, pin string) error {
	if strings.TrimSpace(fullName) == "" {
		return &ValidationError{Field: "full_name", Reason: "required"}
	}
	if len(pin) != 4 {
		return &ValidationError{Field: "pin_code", Reason: "must be 4 digits"}
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return &ValidationError{Field: "pin_code", Reason: "must be 4 digits"}
		}
	}
	return nil
}

// ToMinor converts an amount to kopecks/cents, rounding half away from zero.
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
