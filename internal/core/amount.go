// Package core provides amount parsing and formatting utilities.
//
// Amounts are exact decimals with two fractional digits. Input accepts both
// dot (12.34) and comma (12,34) separators and spaces as digit grouping.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of fractional digits kept for amounts.
const AmountPlaces = 2

// ParseAmount converts user or spreadsheet input to a decimal rounded
// half-up to two places.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("12,345")   -> 12.35
//	ParseAmount("1 000,50") -> 1000.50
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Msg: "сумма не указана"}
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		case ',':
			return '.'
		}
		return r
	}, s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Msg: "некорректная сумма"}
	}
	return d.Round(AmountPlaces), nil
}

// FormatAmount renders an amount with exactly two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountPlaces)
}
