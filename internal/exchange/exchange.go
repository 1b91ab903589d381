// Package exchange computes currency conversions for display before an
// exchange is submitted. The ledger performs the authoritative conversion.
package exchange

import (
	"github.com/shopspring/decimal"

	"casino-miniapp/internal/models"
)

type Calculator struct {
	rate decimal.Decimal // RUB per USD
}

func NewCalculator(rate decimal.Decimal) *Calculator {
	if !rate.IsPositive() {
		rate = models.DefaultExchangeRate
	}
	return &Calculator{rate: rate}
}

func (c *Calculator) Rate() decimal.Decimal {
	return c.rate
}

// Convert returns amount expressed in the other currency, unrounded.
func (c *Calculator) Convert(amount decimal.Decimal, from models.Currency) decimal.Decimal {
	if from == models.CurrencyUSD {
		return amount.Mul(c.rate)
	}
	return amount.Div(c.rate)
}

// Preview is the value shown next to the input: Convert rounded to two
// decimals. Non-positive input previews as zero.
func (c *Calculator) Preview(amount decimal.Decimal, from models.Currency) Preview {
	p := Preview{From: from, To: from.Other(), Amount: amount, Converted: decimal.Zero}
	if amount.IsPositive() {
		p.Converted = c.Convert(amount, from).Round(2)
	}
	return p
}

// Preview is a local estimate and must never be applied to balances.
type Preview struct {
	From      models.Currency
	To        models.Currency
	Amount    decimal.Decimal
	Converted decimal.Decimal
}

func (p Preview) String() string {
	return p.Converted.StringFixed(2) + " " + string(p.To) + " (preview)"
}
