// Package money converts between stored cents and decimal ARS amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const Currency = "ARS"

var (
	hundred = decimal.NewFromInt(100)
	printer = message.NewPrinter(language.MustParse("es-AR"))
)

// FromCents turns a stored integer amount into a decimal.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents rounds half away from zero to whole cents.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// Parse accepts both "1234.50" and "1234,50".
func Parse(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	trimmed = strings.TrimPrefix(trimmed, "$")
	trimmed = strings.TrimSpace(trimmed)
	if strings.Contains(trimmed, ",") {
		trimmed = strings.ReplaceAll(trimmed, ".", "")
		trimmed = strings.ReplaceAll(trimmed, ",", ".")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount.Round(2), nil
}

// Format renders an amount the way Argentine storefronts show prices.
func Format(amount decimal.Decimal) string {
	return "$ " + printer.Sprintf("%.2f", amount.InexactFloat64())
}
