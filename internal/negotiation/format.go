package negotiation

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// money renders a currency amount with thousands separators and no cents,
// e.g. 120000 → "$120,000".
func money(v float64) string {
	if v < 0 {
		return "-" + printer.Sprintf("$%d", int64(math.Round(-v)))
	}
	return printer.Sprintf("$%d", int64(math.Round(v)))
}

// pct renders a percentage with one decimal, e.g. 8.333 → "8.3%".
func pct(v float64) string {
	return printer.Sprintf("%.1f%%", v)
}

// round1 rounds to one decimal place.
func round1(v float64) float64 { return math.Round(v*10) / 10 }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
