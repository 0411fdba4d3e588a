package negotiation

import (
	"strings"
	"testing"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

func f64(v float64) *float64 { return &v }

func offerWithTotal(total float64) domain.Offer {
	return domain.Offer{Type: domain.OfferInitial, Status: domain.OfferActive, BaseSalary: total}
}

func TestEvaluate_BetweenMinimumAndTarget_Counter(t *testing.T) {
	goals := domain.NegotiationGoals{MinimumAcceptable: 100000, TargetSalary: 120000, IdealSalary: f64(140000)}
	ev := Evaluate(offerWithTotal(110000), goals, nil, DefaultSettings())

	if ev.Recommendation != VerdictCounter {
		t.Fatalf("recommendation = %q, want Counter", ev.Recommendation)
	}
	if !ev.MeetsMinimum || ev.MeetsTarget || ev.MeetsIdeal {
		t.Fatalf("flags = %v/%v/%v, want true/false/false", ev.MeetsMinimum, ev.MeetsTarget, ev.MeetsIdeal)
	}
	if !ev.BenchmarkUnavailable {
		t.Fatal("expected benchmark_unavailable without a benchmark")
	}
	if len(ev.Suggestions) != 2 || ev.Suggestions[0].Type != SuggestBaseSalary || ev.Suggestions[1].Type != SuggestSigningBonus {
		t.Fatalf("unexpected suggestions: %+v", ev.Suggestions)
	}
	if got := ev.Suggestions[0].Proposed; got != 120000 {
		t.Fatalf("proposed base = %v, want 120000", got)
	}
}

func TestEvaluate_EqualToIdeal_AcceptsWithAllFlags(t *testing.T) {
	goals := domain.NegotiationGoals{MinimumAcceptable: 100000, TargetSalary: 120000, IdealSalary: f64(140000)}
	ev := Evaluate(offerWithTotal(140000), goals, nil, DefaultSettings())
	if ev.Recommendation != VerdictAccept {
		t.Fatalf("recommendation = %q, want Accept", ev.Recommendation)
	}
	if !ev.MeetsMinimum || !ev.MeetsTarget || !ev.MeetsIdeal {
		t.Fatalf("expected all flags true, got %+v", ev)
	}
	if len(ev.Suggestions) != 0 {
		t.Fatalf("accept should carry no suggestions, got %d", len(ev.Suggestions))
	}
}

func TestEvaluate_NoIdeal_AboveTarget_Accept(t *testing.T) {
	goals := domain.NegotiationGoals{MinimumAcceptable: 100000, TargetSalary: 120000}
	ev := Evaluate(offerWithTotal(125000), goals, nil, DefaultSettings())
	if ev.Recommendation != VerdictAccept {
		t.Fatalf("recommendation = %q, want Accept", ev.Recommendation)
	}
	if !ev.MeetsIdeal {
		t.Fatal("meets_ideal should follow meets_target when no ideal is set")
	}
}

func TestEvaluate_BetweenTargetAndIdeal_MinorImprovements(t *testing.T) {
	goals := domain.NegotiationGoals{MinimumAcceptable: 100000, TargetSalary: 120000, IdealSalary: f64(140000)}
	o := offerWithTotal(130000)
	o.PTODays = 20
	o.RemoteDaysPerWeek = 2
	ev := Evaluate(o, goals, nil, DefaultSettings())
	if ev.Recommendation != VerdictMinor {
		t.Fatalf("recommendation = %q, want Minor Improvements", ev.Recommendation)
	}
	types := map[string]bool{}
	for _, s := range ev.Suggestions {
		types[s.Type] = true
		if s.Type == SuggestBaseSalary || s.Type == SuggestSigningBonus {
			t.Fatalf("minor improvements must not touch core pay: %+v", s)
		}
	}
	for _, want := range []string{SuggestEquity, SuggestPTO, SuggestRemote} {
		if !types[want] {
			t.Fatalf("missing %s suggestion in %+v", want, ev.Suggestions)
		}
	}
}

func TestEvaluate_BelowMinimum_CitesShortfall(t *testing.T) {
	goals := domain.NegotiationGoals{MinimumAcceptable: 100000, TargetSalary: 120000}
	ev := Evaluate(offerWithTotal(90000), goals, nil, DefaultSettings())
	if ev.Recommendation != VerdictCounter {
		t.Fatalf("recommendation = %q, want Counter", ev.Recommendation)
	}
	if ev.Shortfall != 10000 {
		t.Fatalf("shortfall = %v, want 10000", ev.Shortfall)
	}
	if !strings.Contains(ev.Reasoning, "$10,000") || !strings.Contains(ev.Reasoning, "10.0%") {
		t.Fatalf("reasoning should cite amount and percentage: %q", ev.Reasoning)
	}
}

func TestEvaluate_FinalOfferPolicy(t *testing.T) {
	goals := domain.NegotiationGoals{MinimumAcceptable: 100000, TargetSalary: 120000}
	o := offerWithTotal(90000)
	o.Type = domain.OfferFinal

	s := DefaultSettings()
	if ev := Evaluate(o, goals, nil, s); ev.Recommendation != VerdictCounter {
		t.Fatalf("default policy: got %q, want Counter", ev.Recommendation)
	}
	s.FinalOfferPolicy = FinalDecline
	ev := Evaluate(o, goals, nil, s)
	if ev.Recommendation != VerdictDecline {
		t.Fatalf("decline policy: got %q, want Decline", ev.Recommendation)
	}
	if ev.MeetsMinimum {
		t.Fatal("decline must not meet minimum")
	}
}

func TestEvaluate_MinIncrementAndBenchmarkJustification(t *testing.T) {
	goals := domain.NegotiationGoals{MinimumAcceptable: 100000, TargetSalary: 120000}
	o := offerWithTotal(119500)
	bench := &domain.BenchmarkEntry{Median: 130000}
	ev := Evaluate(o, goals, bench, DefaultSettings())
	if ev.BenchmarkUnavailable {
		t.Fatal("benchmark was provided")
	}
	base := ev.Suggestions[0]
	if base.Proposed != 121500 {
		t.Fatalf("proposed = %v, want current + min increment 121500", base.Proposed)
	}
	if !strings.Contains(base.Justification, "below the reported median of $130,000") {
		t.Fatalf("justification should cite the median: %q", base.Justification)
	}
}

func TestEvaluate_RecomputesTotalAndWarnsOnBadGoals(t *testing.T) {
	o := domain.Offer{BaseSalary: 100000, SigningBonus: 5000, PerformanceBonus: 10000, EquityValue: 5000, BenefitsValue: 20000, TotalCompensation: 1}
	goals := domain.NegotiationGoals{MinimumAcceptable: 130000, TargetSalary: 110000}
	ev := Evaluate(o, goals, nil, DefaultSettings())
	if ev.TotalCompensation != 120000 {
		t.Fatalf("total = %v, want 120000", ev.TotalCompensation)
	}
	if len(ev.Warnings) != 1 {
		t.Fatalf("expected one ordering warning, got %v", ev.Warnings)
	}
	// flags stay consistent with the comparisons even with disordered goals
	if ev.MeetsMinimum || !ev.MeetsTarget {
		t.Fatalf("flags = %v/%v", ev.MeetsMinimum, ev.MeetsTarget)
	}
}
