// Package core provides the domain value objects of the metrics engine.
//
// This file contains rounding and display helpers for monetary amounts
// and percentages.
package core

import (
	"fmt"
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for display only; the engine is currency-agnostic.
const DefaultCurrency = money.USD

// Round rounds v to the given number of decimal places, half away from zero,
// on the shortest decimal representation of the float.
//
// Examples:
//
//	Round(2.675, 2) -> 2.68
//	Round(-0.125, 2) -> -0.13
//	Round(1234.5, 0) -> 1235
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// FormatCurrency renders amount in the given ISO currency, e.g. "$2,450,000.00".
// Unknown currency codes fall back to a plain two-decimal number.
func FormatCurrency(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return fmt.Sprintf("%.2f", amount)
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}

// Percent is a percentage expressed in points (12.5 means 12.5%).
type Percent float64

func (p Percent) String() string {
	return fmt.Sprintf("%.2f%%", float64(p))
}

// SignedString renders the value with an explicit sign and one decimal.
func (p Percent) SignedString() string {
	return fmt.Sprintf("%+.1f%%", float64(p))
}
