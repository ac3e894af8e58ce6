// Package core provides money parsing and handling utilities.
//
// This file contains the fixed-point Money arithmetic used for every
// monetary field of an acquisition.
package core

import (
	"fmt"
	"math"
	"strconv"
)

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// Scale multiplies by factor with half-away-from-zero rounding to the cent.
func (m Money) Scale(factor float64) Money {
	return Money{Cents: int64(math.Round(float64(m.Cents) * factor))}
}

// Reais returns the value in reais as a float64 for charts and ratios.
// Use cents for sums to avoid floating-point drift.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}

// MoneyFromFloat converts a real number of reais to cents, rounding half-up.
// Values that do not fit in int64 cents convert to zero.
func MoneyFromFloat(v float64) Money {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Money{}
	}
	cents := math.Round(v * 100)
	if cents >= math.MaxInt64 || cents < math.MinInt64 {
		return Money{}
	}
	return Money{Cents: int64(cents)}
}

// Ratio returns num/den*100, or 0 when den is zero.
func Ratio(num, den Money) float64 {
	if den.Cents == 0 {
		return 0
	}
	return float64(num.Cents) / float64(den.Cents) * 100
}

// MarshalJSON writes the amount in reais with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Reais(), 'f', 2, 64)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = Money{}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = MoneyFromFloat(v)
	return nil
}
