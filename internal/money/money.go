package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// CentPlaces is the number of decimal places kept for monetary amounts.
const CentPlaces = 2

// Round2 rounds d to cents. Ties go to the even cent, so results do not
// depend on the order in which amounts were produced.
// "5.005" -> "5.00", "5.015" -> "5.02", "2.501" -> "2.50"
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(CentPlaces)
}

// ParseAmount parses a form value as a decimal. Blank or non-numeric input is zero.
func ParseAmount(s string) decimal.Decimal {
	d, ok := parse(s)
	if !ok {
		return decimal.Zero
	}
	return d
}

var (
	maxQuantity = decimal.NewFromInt(math.MaxInt64)
	minQuantity = decimal.NewFromInt(math.MinInt64)
)

// FloorQuantity parses a quantity and floors it to a whole number.
// Blank, non-numeric or out of int64 range input is zero.
func FloorQuantity(s string) int64 {
	d, ok := parse(s)
	if !ok {
		return 0
	}
	f := d.Floor()
	if f.GreaterThan(maxQuantity) || f.LessThan(minQuantity) {
		return 0
	}
	return f.IntPart()
}

// ParsePercent parses a percentage form value. Blank input is zero and ok;
// non-numeric input is zero and not ok.
func ParsePercent(s string) (decimal.Decimal, bool) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, true
	}
	return parse(s)
}

// Format renders d with exactly two decimal places.
func Format(d decimal.Decimal) string {
	return d.StringFixed(CentPlaces)
}

func parse(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
