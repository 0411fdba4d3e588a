package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
)

func seedLedger(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		base     float64
		status   domain.OfferStatus
		initial  float64
		final    float64
		rounds   int
		received time.Time
	}{
		{100000, domain.OfferAccepted, 95000, 100000, 2, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)},
		{120000, domain.OfferDeclined, 0, 0, 0, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{140000, domain.OfferAccepted, 130000, 140000, 1, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, r := range rows {
		o := &domain.Offer{
			UserID:            userID,
			JobID:             "job",
			Company:           "Acme",
			Position:          "Engineer",
			Type:              domain.OfferInitial,
			Status:            r.status,
			BaseSalary:        r.base,
			ReceivedDate:      r.received,
			NegotiationRounds: r.rounds,
		}
		if r.initial > 0 {
			initial, final := r.initial, r.final
			o.WasNegotiated = true
			o.InitialOfferAmount = &initial
			o.FinalOfferAmount = &final
		}
		if err := repo.CreateOffer(ctx, db, o); err != nil {
			t.Fatalf("CreateOffer: %v", err)
		}
	}
}

func TestProgression_UsesLatestSessionBenchmark(t *testing.T) {
	db := newSvcDB(t)
	bench := &fakeBench{entry: techSenior()}
	svc := NewAnalyticsService(db, bench, negotiation.DefaultSettings())
	svc.Now = func() time.Time { return fixedNow }
	ctx := context.Background()

	seedLedger(t, db, "u1")
	sess := &domain.NegotiationSession{
		UserID: "u1", Company: "Acme", Position: "Engineer",
		Industry: "Technology", ExperienceLevel: "Senior",
		Goals: domain.NegotiationGoals{MinimumAcceptable: 1, TargetSalary: 2},
	}
	if err := repo.CreateSession(ctx, db, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rep, err := svc.Progression(ctx, "u1", domain.BenchmarkKey{})
	if err != nil {
		t.Fatalf("Progression: %v", err)
	}
	p := rep.Progression
	if !p.HasData || p.TotalOffers != 3 || p.BenchmarkUnavailable {
		t.Fatalf("progression = %+v", p)
	}
	if rep.BenchmarkKey == nil || rep.BenchmarkKey.Industry != "Technology" {
		t.Fatalf("benchmark key = %+v", rep.BenchmarkKey)
	}
	if p.SuccessRate == nil {
		t.Fatal("success rate missing")
	}
	if want := 200.0 / 3; *p.SuccessRate < want-0.1 || *p.SuccessRate > want+0.1 {
		t.Fatalf("success rate = %v; want ~%v", *p.SuccessRate, want)
	}
	if p.PercentileRank == nil || p.MarketPosition == nil {
		t.Fatalf("market fields missing: %+v", p)
	}
	if len(rep.Recommendations) == 0 {
		t.Fatal("expected recommendations below market")
	}
}

func TestProgression_NoDataAndNoBenchmark(t *testing.T) {
	db := newSvcDB(t)
	svc := NewAnalyticsService(db, nil, negotiation.DefaultSettings())

	rep, err := svc.Progression(context.Background(), "nobody", domain.BenchmarkKey{Industry: "Technology", ExperienceLevel: "Senior"})
	if err != nil {
		t.Fatalf("Progression: %v", err)
	}
	if rep.Progression.HasData || !rep.Progression.BenchmarkUnavailable {
		t.Fatalf("progression = %+v", rep.Progression)
	}
	if rep.Recommendations == nil {
		t.Fatal("recommendations must be an empty list, not null")
	}
}

func TestAnalytics(t *testing.T) {
	nsvc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()

	accepted, _ := nsvc.Create(ctx, "u1", sampleSession())
	_, _, _ = nsvc.AddOffer(ctx, "u1", accepted.ID, sampleOffer("Initial", 120000), "", nil)
	_, _ = nsvc.EvaluateCounteroffer(ctx, "u1", accepted.ID, EvaluateInput{}, nil)
	if _, err := nsvc.Complete(ctx, "u1", accepted.ID, CompleteInput{Outcome: "Accepted"}, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	declined, _ := nsvc.Create(ctx, "u1", sampleSession())
	if _, err := nsvc.Complete(ctx, "u1", declined.ID, CompleteInput{Outcome: "Declined"}, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	_, _ = nsvc.Create(ctx, "u1", sampleSession())

	svc := NewAnalyticsService(nsvc.DB, nil, negotiation.DefaultSettings())
	a, err := svc.Analytics(ctx, "u1")
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if a.TotalNegotiations != 3 || a.CompletedNegotiations != 2 {
		t.Fatalf("totals = %d/%d", a.TotalNegotiations, a.CompletedNegotiations)
	}
	if a.SessionsByStatus["Preparing"] != 1 {
		t.Fatalf("by status = %+v", a.SessionsByStatus)
	}
	if a.OutcomeRates["Accepted"] != 50 || a.OutcomeRates["Declined"] != 50 || a.OutcomeRates["Expired"] != 0 {
		t.Fatalf("outcome rates = %+v", a.OutcomeRates)
	}
	if a.CounterofferDistribution[negotiation.VerdictCounter] != 1 {
		t.Fatalf("distribution = %+v", a.CounterofferDistribution)
	}
	if a.SuccessRate == nil || *a.SuccessRate != 100 {
		t.Fatalf("success rate = %v", a.SuccessRate)
	}
}
