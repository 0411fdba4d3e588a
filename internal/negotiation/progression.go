package negotiation

import (
	"sort"
	"time"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// Trend classifications.
const (
	TrendImproving    = "Improving"
	TrendStable       = "Stable"
	TrendDeclining    = "Declining"
	TrendInsufficient = "Insufficient Data"
)

// YearPoint is one bucket of the year-over-year compensation series.
type YearPoint struct {
	Year         int     `json:"year"`
	Offers       int     `json:"offers"`
	AverageTotal float64 `json:"average_total"`
	MaxTotal     float64 `json:"max_total"`
}

// Progression is the per-user aggregate derived from the offer ledger and
// completed sessions. When HasData is false every derived field is omitted.
// Pointer fields are nil when their own inputs are insufficient.
type Progression struct {
	HasData               bool           `json:"has_data"`
	TotalOffers           int            `json:"total_offers"`
	CompletedNegotiations int            `json:"completed_negotiations"`
	OffersByStatus        map[string]int `json:"offers_by_status,omitempty"`
	NegotiatedOffers      int            `json:"negotiated_offers,omitempty"`

	SuccessRate         *float64 `json:"success_rate,omitempty"`
	AverageIncrease     *float64 `json:"average_increase,omitempty"`
	Trend               string   `json:"trend,omitempty"`
	CurrentCompensation *float64 `json:"current_compensation,omitempty"`
	TotalGrowth         *float64 `json:"total_growth,omitempty"`

	PercentileRank *PercentileRank `json:"percentile_rank,omitempty"`
	MarketPosition *MarketPosition `json:"market_position,omitempty"`

	CareerVelocity *float64    `json:"career_velocity,omitempty"`
	Milestones     *int        `json:"milestones,omitempty"`
	YearlySeries   []YearPoint `json:"yearly_series,omitempty"`

	BenchmarkUnavailable bool `json:"benchmark_unavailable"`
}

// Analyze aggregates offers and completed sessions into a Progression.
// Offers may arrive in any order; they are sorted by received date. bench may
// be nil, in which case percentile and market fields are omitted and
// BenchmarkUnavailable is set. now anchors the offer frequency window.
func Analyze(offers []domain.Offer, sessions []domain.NegotiationSession, bench *domain.BenchmarkEntry, s Settings, now time.Time) Progression {
	s = s.withDefaults()
	p := Progression{
		TotalOffers:          len(offers),
		BenchmarkUnavailable: bench == nil,
	}
	for _, sess := range sessions {
		if sess.IsTerminal() {
			p.CompletedNegotiations++
		}
	}
	if len(offers) == 0 {
		return p
	}
	p.HasData = true

	sorted := make([]domain.Offer, len(offers))
	copy(sorted, offers)
	for i := range sorted {
		sorted[i].RecomputeTotal()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReceivedDate.Before(sorted[j].ReceivedDate)
	})

	p.OffersByStatus = map[string]int{}
	for _, o := range sorted {
		p.OffersByStatus[string(o.Status)]++
	}
	p.SuccessRate = successRate(sorted)

	increases := negotiatedIncreases(sorted)
	p.NegotiatedOffers = len(increases)
	if len(increases) > 0 {
		avg := round1(mean(increases) * 100)
		p.AverageIncrease = &avg
	}
	p.Trend = classifyTrend(increases, s)

	first, latest := sorted[0], sorted[len(sorted)-1]
	current := latest.TotalCompensation
	p.CurrentCompensation = &current
	if first.TotalCompensation > 0 {
		g := round1((current - first.TotalCompensation) / first.TotalCompensation * 100)
		p.TotalGrowth = &g
	}

	if bench != nil {
		if r, ok := RankPercentile(current, bench.Percentiles); ok {
			p.PercentileRank = &r
		}
		if mp, ok := PositionAgainst(current, bench.Median, s.MarketBandPct); ok {
			p.MarketPosition = &mp
		}
	}

	m := countMilestones(sorted, sessions)
	p.Milestones = &m
	v := careerVelocity(sorted, m, p.TotalGrowth, s, now)
	p.CareerVelocity = &v
	p.YearlySeries = yearlySeries(sorted)
	return p
}

// successRate is accepted / (accepted + declined) in percent; nil when no
// offer has been decided.
func successRate(offers []domain.Offer) *float64 {
	var accepted, decided int
	for _, o := range offers {
		switch o.Status {
		case domain.OfferAccepted:
			accepted++
			decided++
		case domain.OfferDeclined:
			decided++
		}
	}
	if decided == 0 {
		return nil
	}
	r := round1(float64(accepted) / float64(decided) * 100)
	return &r
}

// negotiatedIncreases returns fractional increases of negotiated offers in
// chronological order. Rounds of one session count once: the accepted round
// if there is one, else the latest. offers must be sorted by received date.
func negotiatedIncreases(offers []domain.Offer) []float64 {
	closing := map[string]int{}
	for i, o := range offers {
		if o.NegotiationID == nil || *o.NegotiationID == "" {
			continue
		}
		if _, ok := o.Increase(); !ok {
			continue
		}
		prev, seen := closing[*o.NegotiationID]
		if !seen || offers[prev].Status != domain.OfferAccepted || o.Status == domain.OfferAccepted {
			closing[*o.NegotiationID] = i
		}
	}

	var out []float64
	for i, o := range offers {
		if o.NegotiationID != nil {
			if c, ok := closing[*o.NegotiationID]; ok && c != i {
				continue
			}
		}
		if inc, ok := o.Increase(); ok {
			out = append(out, inc)
		}
	}
	return out
}

func classifyTrend(increases []float64, s Settings) string {
	if len(increases) < s.MinTrendSample {
		return TrendInsufficient
	}
	half := len(increases) / 2
	diff := (mean(increases[half:]) - mean(increases[:half])) * 100
	switch {
	case diff > s.TrendThresholdPct+epsilon:
		return TrendImproving
	case diff < -s.TrendThresholdPct-epsilon:
		return TrendDeclining
	}
	return TrendStable
}

// countMilestones counts accepted offers that set a new compensation high
// plus sessions that ended Accepted.
func countMilestones(offers []domain.Offer, sessions []domain.NegotiationSession) int {
	n := 0
	best := -1.0
	for _, o := range offers {
		if o.Status != domain.OfferAccepted {
			continue
		}
		if o.TotalCompensation > best {
			best = o.TotalCompensation
			n++
		}
	}
	for _, sess := range sessions {
		if sess.Status == domain.SessionAccepted {
			n++
		}
	}
	return n
}

// careerVelocity is a weighted sum in [0,100]:
//
//	frequency = min(offers per year / 4, 1)
//	milestone = min(milestones / 5, 1)
//	growth    = clamp(total growth % / 50, 0, 1)
//
// Offers per year is measured from the first offer to now, with a floor of
// one year so a burst of recent offers is not over-weighted.
func careerVelocity(offers []domain.Offer, milestones int, growth *float64, s Settings, now time.Time) float64 {
	years := now.Sub(offers[0].ReceivedDate).Hours() / 24 / 365.25
	if years < 1 {
		years = 1
	}
	freq := clamp(float64(len(offers))/years/4, 0, 1)
	mile := clamp(float64(milestones)/5, 0, 1)
	grow := 0.0
	if growth != nil {
		grow = clamp(*growth/50, 0, 1)
	}
	wsum := s.VelocityFrequencyWeight + s.VelocityMilestoneWeight + s.VelocityGrowthWeight
	score := (s.VelocityFrequencyWeight*freq + s.VelocityMilestoneWeight*mile + s.VelocityGrowthWeight*grow) / wsum
	return round1(score * 100)
}

func yearlySeries(offers []domain.Offer) []YearPoint {
	byYear := map[int]*YearPoint{}
	var years []int
	sums := map[int][]float64{}
	for _, o := range offers {
		y := o.ReceivedDate.Year()
		yp, ok := byYear[y]
		if !ok {
			yp = &YearPoint{Year: y}
			byYear[y] = yp
			years = append(years, y)
		}
		yp.Offers++
		yp.MaxTotal = max(yp.MaxTotal, o.TotalCompensation)
		sums[y] = append(sums[y], o.TotalCompensation)
	}
	sort.Ints(years)
	out := make([]YearPoint, 0, len(years))
	for _, y := range years {
		yp := byYear[y]
		yp.AverageTotal = domain.SumAmounts(sums[y]...) / float64(len(sums[y]))
		yp.AverageTotal = domain.RoundCents(yp.AverageTotal)
		out = append(out, *yp)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
