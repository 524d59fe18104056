package services

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatMoney_Values(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		currency CurrencyType
		expect   string
	}{
		{"zero", "0", CurrencyRUB, "0.00 ₽"},
		{"small integer", "5", CurrencyRUB, "5.00 ₽"},
		{"with decimals", "42.5", CurrencyUSD, "42.50 $"},
		{"thousands", "1234.56", CurrencyEUR, "1,234.56 €"},
		{"millions", "1234567.891", CurrencyRUB, "1,234,567.89 ₽"},
		{"yuan", "1000", CurrencyCNY, "1,000.00 ¥"},
		{"negative", "-250000.5", CurrencyRUB, "-250,000.50 ₽"},
		{"unknown currency", "10", CurrencyType("GBP"), "10.00 GBP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatMoney(decimal.RequireFromString(tt.input), tt.currency)
			if got != tt.expect {
				t.Errorf("FormatMoney(%s, %s) = %q, want %q", tt.input, tt.currency, got, tt.expect)
			}
		})
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		input  string
		expect string
	}{
		{"30", "30"},
		{"1.5", "1.5"},
		{"0.333333", "0.3333"},
		{"12.50000", "12.5"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := FormatQuantity(decimal.RequireFromString(tt.input))
			if got != tt.expect {
				t.Errorf("FormatQuantity(%s) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}
