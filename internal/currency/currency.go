package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/invoicely/invoicely/internal/money"
)

// Code is a currency code such as "USD".
type Code string

const (
	USD Code = "USD"
	GBP Code = "GBP"
	JPY Code = "JPY"
	CAD Code = "CAD"
	AUD Code = "AUD"
	SGD Code = "SGD"
	CNY Code = "CNY"
	BTC Code = "BTC"
)

// Codes lists the supported currencies in declaration order.
// Reverse symbol lookup takes the first match in this order.
var Codes = []Code{USD, GBP, JPY, CAD, AUD, SGD, CNY, BTC}

var symbols = map[Code]string{
	USD: "$",
	GBP: "£",
	JPY: "¥",
	CAD: "$",
	AUD: "$",
	SGD: "$",
	CNY: "¥",
	BTC: "₿",
}

var names = map[Code]string{
	USD: "United States Dollar",
	GBP: "British Pound Sterling",
	JPY: "Japanese Yen",
	CAD: "Canadian Dollar",
	AUD: "Australian Dollar",
	SGD: "Singapore Dollar",
	CNY: "Chinese Renminbi",
	BTC: "Bitcoin",
}

var (
	// ErrUnknownCurrency is returned for codes outside Codes.
	ErrUnknownCurrency = errors.New("unknown currency")
	// ErrRateUnavailable is returned when a rate table lacks a positive rate for a code.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
)

// Parse normalizes s ("usd", " JPY ") into a known Code.
func Parse(s string) (Code, error) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}
	return c, nil
}

// Valid reports whether c is a supported currency.
func (c Code) Valid() bool {
	_, ok := symbols[c]
	return ok
}

// Symbol returns the display symbol for c, or the code itself when unknown.
func (c Code) Symbol() string {
	if s, ok := symbols[c]; ok {
		return s
	}
	return string(c)
}

// Name returns the long name of c.
func (c Code) Name() string {
	return names[c]
}

// SymbolOf returns the display symbol for c.
func SymbolOf(c Code) string {
	return c.Symbol()
}

// CodeForSymbol maps a symbol back to a code. Several currencies share "$" and "¥",
// so the first match in Codes wins: "$" is always USD and "¥" is always JPY.
func CodeForSymbol(symbol string) (Code, bool) {
	for _, c := range Codes {
		if symbols[c] == symbol {
			return c, true
		}
	}
	return "", false
}

// Rates maps a currency code to its rate against a fixed base currency.
type Rates map[Code]decimal.Decimal

// Rate returns the rate for c. Missing and non-positive rates are unavailable.
func (r Rates) Rate(c Code) (decimal.Decimal, error) {
	rate, ok := r[c]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateUnavailable, c)
	}
	return rate, nil
}

// Has reports whether r holds a usable rate for every code given.
func (r Rates) Has(codes ...Code) bool {
	for _, c := range codes {
		if _, err := r.Rate(c); err != nil {
			return false
		}
	}
	return true
}

// Ratio returns rate(to) / rate(from). Same-code ratios are exactly one
// and need no table entry.
func (r Rates) Ratio(from, to Code) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	fromRate, err := r.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := r.Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	return toRate.Div(fromRate), nil
}

// Convert returns amount expressed in to, rounded to cents.
// Same-code conversions return amount unchanged.
func (r Rates) Convert(amount decimal.Decimal, from, to Code) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	fromRate, err := r.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := r.Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	return money.Round2(amount.Mul(toRate).Div(fromRate)), nil
}

// Clone returns a copy of r.
func (r Rates) Clone() Rates {
	if r == nil {
		return nil
	}
	out := make(Rates, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
