package payfast

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AmountToCents converts a rand amount such as "5000.00" into cents, rounding half up.
func AmountToCents(amount string) (int64, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", amount)
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}

// FormatCents renders cents in the two-decimal form PayFast expects.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
