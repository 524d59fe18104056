package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateTable is a tender's snapshot of foreign currency to base currency rates.
// A missing or non-positive entry means the rate is not configured.
type RateTable map[CurrencyType]decimal.Decimal

// Resolve returns the rate to snapshot onto an item written in currency c.
// Base currency resolves to nil.
func (t RateTable) Resolve(c CurrencyType) (*decimal.Decimal, error) {
	if !c.Valid() {
		return nil, newValidationError("currency_type", fmt.Sprintf("unsupported currency %q", c))
	}
	if c.IsBase() {
		return nil, nil
	}
	rate, ok := t[c]
	if !ok || !rate.IsPositive() {
		return nil, fmt.Errorf("%w: no rate configured for %s", ErrMissingExchangeRate, c)
	}
	return decimalPtr(rate), nil
}

// ToBaseCurrency converts a per-unit amount into the tender's base currency.
// Base-currency amounts are returned unchanged whatever the rate argument holds.
func ToBaseCurrency(amount decimal.Decimal, c CurrencyType, rate *decimal.Decimal) (decimal.Decimal, error) {
	if c.IsBase() {
		return amount, nil
	}
	if !c.Valid() {
		return decimal.Zero, newValidationError("currency_type", fmt.Sprintf("unsupported currency %q", c))
	}
	if rate == nil || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s amount has no positive rate", ErrMissingExchangeRate, c)
	}
	return amount.Mul(*rate), nil
}
