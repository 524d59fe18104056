package services

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var currencySymbols = map[CurrencyType]string{
	CurrencyRUB: "₽",
	CurrencyUSD: "$",
	CurrencyEUR: "€",
	CurrencyCNY: "¥",
}

// FormatMoney renders an amount with thousands separators, exactly two
// decimals and the currency symbol after the number (e.g. 1,234,567.89 ₽).
func FormatMoney(amount decimal.Decimal, currency CurrencyType) string {
	s := FormatAmount(amount)
	if sym, ok := currencySymbols[currency]; ok {
		return s + " " + sym
	}
	return s + " " + string(currency)
}

// FormatAmount renders an amount with thousands separators and two decimals.
func FormatAmount(amount decimal.Decimal) string {
	return humanize.FormatFloat("#,###.##", amount.Round(2).InexactFloat64())
}

// FormatQuantity renders a quantity with up to four decimals and no trailing zeros.
func FormatQuantity(q decimal.Decimal) string {
	return q.Round(4).String()
}
