// Package money converts between decimal money strings and signed
// minor-unit integers. Amounts are stored as minor units everywhere;
// decimals only appear at parsing and formatting boundaries.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseMinor parses a decimal money string ("1500.00") into minor units
// at the given precision (150000 at precision 2). Strings with more
// fractional digits than the precision allows are rejected.
func ParseMinor(s string, precision int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	scaled := d.Shift(precision)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, precision)
	}
	return scaled.IntPart(), nil
}

// FormatMinor renders minor units as a decimal string at the given
// precision. FormatMinor(150000, 2) == "1500.00".
func FormatMinor(v int64, precision int32) string {
	return decimal.NewFromInt(v).Shift(-precision).StringFixed(precision)
}

// Percent returns pct percent of v in minor units, truncated toward
// zero so that a set of percentage allocations can never exceed the
// whole. Percent(100000, 60) == 60000.
func Percent(v int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(v).Mul(pct).Div(decimal.NewFromInt(100)).Truncate(0).IntPart()
}
