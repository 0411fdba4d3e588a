package negotiation

import (
	"fmt"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// Verdicts produced by Evaluate.
const (
	VerdictCounter = "Counter"
	VerdictDecline = "Decline"
	VerdictMinor   = "Minor Improvements"
	VerdictAccept  = "Accept"
)

// Suggestion types.
const (
	SuggestBaseSalary   = "base_salary"
	SuggestSigningBonus = "signing_bonus"
	SuggestEquity       = "equity"
	SuggestPTO          = "pto"
	SuggestRemote       = "remote_flexibility"
)

// Evaluation is the verdict for a single offer.
type Evaluation struct {
	Recommendation       string                     `json:"recommendation"`
	Reasoning            string                     `json:"reasoning"`
	MeetsMinimum         bool                       `json:"meets_minimum"`
	MeetsTarget          bool                       `json:"meets_target"`
	MeetsIdeal           bool                       `json:"meets_ideal"`
	Suggestions          []domain.CounterSuggestion `json:"suggestions"`
	TotalCompensation    float64                    `json:"total_compensation"`
	Shortfall            float64                    `json:"shortfall"`
	BenchmarkUnavailable bool                       `json:"benchmark_unavailable"`
	Warnings             []string                   `json:"warnings,omitempty"`
}

// Evaluate compares offer against goals and, when present, the benchmark.
// Rules are evaluated in order; the first match wins:
//
//  1. total < minimum                 → Counter (Decline for a Final offer under FinalDecline)
//  2. minimum <= total < target       → Counter on base salary / signing bonus
//  3. target <= total < ideal         → Minor Improvements on secondary terms
//  4. total >= ideal (or >= target)   → Accept
//
// The offer's total is recomputed from its components. Badly ordered goals
// are reported in Warnings and do not abort the evaluation.
func Evaluate(offer domain.Offer, goals domain.NegotiationGoals, bench *domain.BenchmarkEntry, s Settings) Evaluation {
	s = s.withDefaults()
	offer.RecomputeTotal()
	total := offer.TotalCompensation

	ev := Evaluation{
		TotalCompensation:    total,
		MeetsMinimum:         total >= goals.MinimumAcceptable,
		MeetsTarget:          total >= goals.TargetSalary,
		BenchmarkUnavailable: bench == nil,
		Warnings:             goals.OrderingViolations(),
		Suggestions:          []domain.CounterSuggestion{},
	}
	if goals.IdealSalary != nil {
		ev.MeetsIdeal = total >= *goals.IdealSalary
	} else {
		ev.MeetsIdeal = ev.MeetsTarget
	}

	switch {
	case !ev.MeetsMinimum:
		short := domain.RoundCents(goals.MinimumAcceptable - total)
		ev.Shortfall = short
		shortPct := 0.0
		if goals.MinimumAcceptable > 0 {
			shortPct = short / goals.MinimumAcceptable * 100
		}
		if offer.Type == domain.OfferFinal && s.FinalOfferPolicy == FinalDecline {
			ev.Recommendation = VerdictDecline
			ev.Reasoning = fmt.Sprintf("This final offer of %s is %s (%s) below your minimum acceptable %s and leaves no room for another round.",
				money(total), money(short), pct(shortPct), money(goals.MinimumAcceptable))
			return ev
		}
		ev.Recommendation = VerdictCounter
		ev.Reasoning = fmt.Sprintf("The offer of %s is %s (%s) below your minimum acceptable %s; counter toward your target of %s.",
			money(total), money(short), pct(shortPct), money(goals.MinimumAcceptable), money(goals.TargetSalary))
		ev.Suggestions = coreSuggestions(offer, goals.TargetSalary-total, bench, s)

	case !ev.MeetsTarget:
		gap := domain.RoundCents(goals.TargetSalary - total)
		ev.Shortfall = gap
		ev.Recommendation = VerdictCounter
		ev.Reasoning = fmt.Sprintf("The offer of %s clears your minimum but is %s short of your target of %s.",
			money(total), money(gap), money(goals.TargetSalary))
		ev.Suggestions = coreSuggestions(offer, gap, bench, s)

	case goals.IdealSalary != nil && !ev.MeetsIdeal:
		gap := domain.RoundCents(*goals.IdealSalary - total)
		ev.Shortfall = gap
		ev.Recommendation = VerdictMinor
		ev.Reasoning = fmt.Sprintf("The offer of %s meets your target; it is %s from your ideal of %s, so negotiate secondary terms only.",
			money(total), money(gap), money(*goals.IdealSalary))
		ev.Suggestions = secondarySuggestions(offer, gap, s)

	default:
		ev.Recommendation = VerdictAccept
		ev.Reasoning = fmt.Sprintf("The offer of %s meets or exceeds your goals.", money(total))
	}
	return ev
}

// coreSuggestions proposes closing gap through base salary or, alternatively,
// a signing bonus.
func coreSuggestions(offer domain.Offer, gap float64, bench *domain.BenchmarkEntry, s Settings) []domain.CounterSuggestion {
	ask := max(gap, s.MinIncrement)
	base := domain.CounterSuggestion{
		Type:          SuggestBaseSalary,
		Current:       offer.BaseSalary,
		Proposed:      domain.RoundCents(offer.BaseSalary + ask),
		Unit:          "currency",
		Justification: baseJustification(offer.BaseSalary, ask, bench),
	}
	bonus := domain.CounterSuggestion{
		Type:          SuggestSigningBonus,
		Current:       offer.SigningBonus,
		Proposed:      domain.RoundCents(offer.SigningBonus + ask),
		Unit:          "currency",
		Justification: fmt.Sprintf("A one-time signing bonus of %s closes the gap if base salary is fixed.", money(ask)),
	}
	return []domain.CounterSuggestion{base, bonus}
}

func baseJustification(base, ask float64, bench *domain.BenchmarkEntry) string {
	if bench == nil || bench.Median <= 0 {
		return fmt.Sprintf("Raising base by %s closes the gap to your target.", money(ask))
	}
	diff := (bench.Median - base) / bench.Median * 100
	if diff > 0 {
		return fmt.Sprintf("The offered base is %s below the reported median of %s for this role and location.",
			pct(diff), money(bench.Median))
	}
	return fmt.Sprintf("The offered base is %s above the reported median of %s; anchor the ask on your target rather than market.",
		pct(-diff), money(bench.Median))
}

// secondarySuggestions proposes equity, PTO and remote-work improvements.
func secondarySuggestions(offer domain.Offer, gap float64, s Settings) []domain.CounterSuggestion {
	ask := max(gap, s.MinIncrement)
	out := []domain.CounterSuggestion{{
		Type:          SuggestEquity,
		Current:       offer.EquityValue,
		Proposed:      domain.RoundCents(offer.EquityValue + ask),
		Unit:          "currency",
		Justification: fmt.Sprintf("Additional annualized equity of %s reaches your ideal without reopening base salary.", money(ask)),
	}, {
		Type:          SuggestPTO,
		Current:       float64(offer.PTODays),
		Proposed:      float64(offer.PTODays + s.PTOIncrementDays),
		Unit:          "days",
		Justification: fmt.Sprintf("Ask for %d more days of paid time off.", s.PTOIncrementDays),
	}}
	if offer.RemoteDaysPerWeek < 5 {
		proposed := min(offer.RemoteDaysPerWeek+s.RemoteIncrementDays, 5)
		out = append(out, domain.CounterSuggestion{
			Type:          SuggestRemote,
			Current:       float64(offer.RemoteDaysPerWeek),
			Proposed:      float64(proposed),
			Unit:          "days_per_week",
			Justification: fmt.Sprintf("Request %d remote days per week.", proposed),
		})
	}
	return out
}
