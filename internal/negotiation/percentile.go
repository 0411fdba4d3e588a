package negotiation

import "github.com/tbourn/go-negotiation-backend/internal/domain"

// Market position classifications.
const (
	AboveMarket = "Above Market"
	AtMarket    = "At Market"
	BelowMarket = "Below Market"
)

// epsilon absorbs floating point noise at band and percentile boundaries.
const epsilon = 1e-9

// PercentileRank is the interpolated position of a value in a percentile table.
type PercentileRank struct {
	Rank         float64 `json:"rank"`
	Extrapolated bool    `json:"extrapolated"`
}

// RankPercentile interpolates value linearly between the five known points of
// p. Values below p10 or above p90 are clamped to 10 or 90 and flagged as
// extrapolated. ok is false when the table is not usable (non-positive or
// decreasing points).
func RankPercentile(value float64, p domain.Percentiles) (PercentileRank, bool) {
	if !p.Monotonic() {
		return PercentileRank{}, false
	}
	pts := p.Points()
	first, last := pts[0], pts[len(pts)-1]
	switch {
	case value < first[1]-epsilon:
		return PercentileRank{Rank: first[0], Extrapolated: true}, true
	case value > last[1]+epsilon:
		return PercentileRank{Rank: last[0], Extrapolated: true}, true
	}
	for i := 1; i < len(pts); i++ {
		lo, hi := pts[i-1], pts[i]
		if value > hi[1]+epsilon {
			continue
		}
		if hi[1]-lo[1] <= epsilon {
			// flat segment: report the upper percentile of the plateau
			return PercentileRank{Rank: hi[0]}, true
		}
		frac := clamp((value-lo[1])/(hi[1]-lo[1]), 0, 1)
		return PercentileRank{Rank: round1(lo[0] + frac*(hi[0]-lo[0]))}, true
	}
	return PercentileRank{Rank: last[0]}, true
}

// MarketPosition describes a compensation value relative to a median.
type MarketPosition struct {
	Classification string  `json:"classification"`
	GapPercentage  float64 `json:"gap_percentage"`
	GapFromMarket  float64 `json:"gap_from_market"`
	Median         float64 `json:"median"`
}

// PositionAgainst classifies value against median with a ±bandPct tolerance
// (percent units). ok is false when median is not positive.
func PositionAgainst(value, median, bandPct float64) (MarketPosition, bool) {
	if median <= 0 {
		return MarketPosition{}, false
	}
	gap := (value - median) / median * 100
	mp := MarketPosition{
		Classification: AtMarket,
		GapPercentage:  round1(gap),
		GapFromMarket:  domain.RoundCents(value - median),
		Median:         median,
	}
	switch {
	case gap > bandPct+epsilon:
		mp.Classification = AboveMarket
	case gap < -bandPct-epsilon:
		mp.Classification = BelowMarket
	}
	return mp, true
}
