package negotiation

import (
	"fmt"
	"sort"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// Priority of a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	}
	return 2
}

// Recommendation types.
const (
	RecMarketAlignment   = "market_alignment"
	RecNextPercentile    = "next_percentile_band"
	RecNegotiationSkills = "negotiation_skills"
	RecOfferConversion   = "offer_conversion"
	RecSkillDevelopment  = "skill_development"
	RecStartTracking     = "start_tracking"
)

// Impact is the arithmetic projection of a recommendation.
type Impact struct {
	SalaryIncrease float64 `json:"salary_increase"`
	Percentage     float64 `json:"percentage"`
}

// Recommendation is an advancement suggestion. It is generated per request
// and never persisted.
type Recommendation struct {
	Type            string   `json:"recommendation_type"`
	Priority        Priority `json:"priority"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	PotentialImpact Impact   `json:"potential_impact"`
	Timeframe       string   `json:"timeframe"`
	ActionItems     []string `json:"action_items"`
}

// Recommend derives prioritized recommendations from a progression and the
// benchmark it was computed against. The result is sorted by priority, then
// impact percentage descending, then type.
func Recommend(p Progression, bench *domain.BenchmarkEntry, s Settings) []Recommendation {
	s = s.withDefaults()
	if !p.HasData || p.CurrentCompensation == nil || *p.CurrentCompensation <= 0 {
		return []Recommendation{{
			Type:        RecStartTracking,
			Priority:    PriorityLow,
			Title:       "Start tracking your offers",
			Description: "Record the offers you receive and how each negotiation ends to unlock progression insights.",
			Timeframe:   "Ongoing",
			ActionItems: []string{
				"Log every offer with its base salary and bonuses",
				"Record the initial and final amounts of each negotiation",
			},
		}}
	}
	current := *p.CurrentCompensation
	var out []Recommendation

	if mp := p.MarketPosition; mp != nil && mp.GapPercentage < 0 {
		prio := PriorityMedium
		if mp.GapPercentage < -s.HighGapPct {
			prio = PriorityHigh
		}
		out = append(out, Recommendation{
			Type:     RecMarketAlignment,
			Priority: prio,
			Title:    "Close the gap to the market median",
			Description: fmt.Sprintf("Your current compensation of %s is %s below the market median of %s.",
				money(current), pct(-mp.GapPercentage), money(mp.Median)),
			PotentialImpact: impactTo(current, mp.Median),
			Timeframe:       "Next review or offer",
			ActionItems: []string{
				"Bring the benchmark median to your next compensation conversation",
				"Document results that justify a market adjustment",
			},
		})
	}

	if bench != nil && p.PercentileRank != nil && p.PercentileRank.Rank >= 50 {
		if pctile, target, ok := nextBand(p.PercentileRank.Rank, bench.Percentiles); ok && target > current {
			out = append(out, Recommendation{
				Type:     RecNextPercentile,
				Priority: PriorityLow,
				Title:    fmt.Sprintf("Reach the %dth percentile", pctile),
				Description: fmt.Sprintf("You sit around the %.0fth percentile; the next band starts at %s.",
					p.PercentileRank.Rank, money(target)),
				PotentialImpact: impactTo(current, target),
				Timeframe:       "12-24 months",
				ActionItems: []string{
					"Take on scope that maps to the next level",
					"Ask for a compensation review tied to that scope",
				},
			})
		}
	}

	if p.Trend == TrendDeclining {
		gain := s.DefaultNegotiationGainPct
		if p.AverageIncrease != nil && *p.AverageIncrease > 0 {
			gain = *p.AverageIncrease
		}
		out = append(out, Recommendation{
			Type:            RecNegotiationSkills,
			Priority:        PriorityHigh,
			Title:           "Rebuild your negotiation results",
			Description:     "Your recent negotiations gained less than earlier ones. Practice your counter before the next offer.",
			PotentialImpact: impactPct(current, gain),
			Timeframe:       "Before your next offer",
			ActionItems: []string{
				"Run the practice conversation for your next scenario",
				"Prepare a written counter with a specific number",
			},
		})
	}

	if p.SuccessRate != nil && *p.SuccessRate < 50 {
		out = append(out, Recommendation{
			Type:     RecOfferConversion,
			Priority: PriorityMedium,
			Title:    "Convert more offers",
			Description: fmt.Sprintf("Only %s of your decided offers ended accepted. Focus on roles that match your goals.",
				pct(*p.SuccessRate)),
			PotentialImpact: impactPct(current, s.DefaultNegotiationGainPct),
			Timeframe:       "3-6 months",
			ActionItems: []string{
				"Check your minimum and target goals against the benchmark",
				"Clarify must-have terms early in the process",
			},
		})
	}

	out = append(out, Recommendation{
		Type:            RecSkillDevelopment,
		Priority:        PriorityLow,
		Title:           "Invest in high-value skills",
		Description:     "Certifications and in-demand skills strengthen your next negotiation.",
		PotentialImpact: impactPct(current, s.SkillPremiumPct),
		Timeframe:       "6-12 months",
		ActionItems: []string{
			"Pick one certification relevant to your role",
			"Quantify the results of a recent project",
		},
	})

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority.rank() != b.Priority.rank() {
			return a.Priority.rank() < b.Priority.rank()
		}
		if a.PotentialImpact.Percentage != b.PotentialImpact.Percentage {
			return a.PotentialImpact.Percentage > b.PotentialImpact.Percentage
		}
		return a.Type < b.Type
	})
	return out
}

// nextBand returns the first percentile point strictly above rank.
func nextBand(rank float64, p domain.Percentiles) (int, float64, bool) {
	if !p.Monotonic() {
		return 0, 0, false
	}
	for _, pt := range p.Points() {
		if pt[0] > rank+epsilon {
			return int(pt[0]), pt[1], true
		}
	}
	return 0, 0, false
}

func impactTo(current, target float64) Impact {
	inc := domain.RoundCents(target - current)
	return Impact{SalaryIncrease: inc, Percentage: round1(inc / current * 100)}
}

func impactPct(current, pctUnits float64) Impact {
	return Impact{
		SalaryIncrease: domain.RoundCents(current * pctUnits / 100),
		Percentage:     round1(pctUnits),
	}
}
