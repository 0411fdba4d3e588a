package domain

import "github.com/shopspring/decimal"

// SumAmounts adds currency amounts with decimal arithmetic and rounds the
// result to cents, so totals never accumulate binary floating point drift.
func SumAmounts(amounts ...float64) float64 {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(decimal.NewFromFloat(a))
	}
	f, _ := sum.Round(2).Float64()
	return f
}

// RoundCents rounds a currency amount to two decimal places (half away from zero).
func RoundCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
