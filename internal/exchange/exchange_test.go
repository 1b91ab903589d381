package exchange_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"casino-miniapp/internal/exchange"
	"casino-miniapp/internal/models"
)

func TestPreviewRUBToUSD(t *testing.T) {
	calc := exchange.NewCalculator(decimal.NewFromInt(95))

	p := calc.Preview(decimal.NewFromInt(950), models.CurrencyRUB)
	assert.Equal(t, models.CurrencyUSD, p.To)
	assert.Equal(t, "10.00", p.Converted.StringFixed(2))
	assert.Equal(t, "10.00 USD (preview)", p.String())
}

func TestPreviewUSDToRUB(t *testing.T) {
	calc := exchange.NewCalculator(decimal.Zero)
	assert.True(t, calc.Rate().Equal(models.DefaultExchangeRate))

	p := calc.Preview(decimal.RequireFromString("1.5"), models.CurrencyUSD)
	assert.Equal(t, models.CurrencyRUB, p.To)
	assert.Equal(t, "142.50", p.Converted.StringFixed(2))
}

func TestPreviewNonPositive(t *testing.T) {
	calc := exchange.NewCalculator(models.DefaultExchangeRate)
	assert.True(t, calc.Preview(decimal.Zero, models.CurrencyRUB).Converted.IsZero())
	assert.True(t, calc.Preview(decimal.NewFromInt(-3), models.CurrencyUSD).Converted.IsZero())
}

func TestConvertRoundTrip(t *testing.T) {
	calc := exchange.NewCalculator(models.DefaultExchangeRate)
	tolerance := decimal.RequireFromString("0.01")

	for _, s := range []string{"1", "100", "950", "1234.56", "0.01", "99999.99"} {
		x := decimal.RequireFromString(s)
		back := calc.Convert(calc.Convert(x, models.CurrencyRUB), models.CurrencyUSD)
		assert.True(t, back.Sub(x).Abs().LessThanOrEqual(tolerance), "round trip of %s gave %s", s, back)
	}
}
