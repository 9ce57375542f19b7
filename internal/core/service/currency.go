package service

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/craftly/cart-engine/internal/core/domain"
)

var ErrUnknownCurrency = errors.New("unknown currency")

// Static conversion table from the EUR base. A documented
// approximation for display purposes, not a live FX feed.
var eurRates = map[domain.Currency]decimal.Decimal{
	domain.EUR: decimal.NewFromInt(1),
	domain.USD: decimal.RequireFromString("1.09"),
	domain.GBP: decimal.RequireFromString("0.86"),
}

// CurrencyConverter converts base-currency (EUR) amounts into a display
// currency and formats them per currency convention.
type CurrencyConverter struct {
	rates map[domain.Currency]decimal.Decimal
}

func NewCurrencyConverter() *CurrencyConverter {
	return &CurrencyConverter{rates: eurRates}
}

// Convert maps an EUR amount to the target currency, rounded to two
// decimals. Converting to EUR returns the amount unchanged.
func (c *CurrencyConverter) Convert(amount decimal.Decimal, to domain.Currency) (decimal.Decimal, error) {
	if to == domain.EUR {
		return amount, nil
	}
	rate, ok := c.rates[to]
	if !ok {
		return decimal.Zero, ErrUnknownCurrency
	}
	return amount.Mul(rate).Round(2), nil
}

// Format renders an already-converted amount. EUR drops decimals and
// places the symbol after the amount; USD and GBP keep two decimals
// with the symbol in front.
func (c *CurrencyConverter) Format(amount decimal.Decimal, currency domain.Currency) string {
	switch currency {
	case domain.EUR:
		return amount.Round(0).String() + " €"
	case domain.USD:
		return "$" + amount.StringFixed(2)
	case domain.GBP:
		return "£" + amount.StringFixed(2)
	default:
		return amount.StringFixed(2) + " " + string(currency)
	}
}

// Display converts and formats in one step, the common path for
// price-displaying callers.
func (c *CurrencyConverter) Display(amount decimal.Decimal, currency domain.Currency) (string, error) {
	converted, err := c.Convert(amount, currency)
	if err != nil {
		return "", err
	}
	return c.Format(converted, currency), nil
}
