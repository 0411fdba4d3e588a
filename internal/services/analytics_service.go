// Package services – AnalyticsService
//
// This file implements the per-user read models: the progression report
// (offer ledger trends, market standing and prioritized recommendations) and
// the negotiation analytics summary (sessions by status, outcome rates,
// rounds and counteroffer verdicts).
package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
)

// AnalyticsService computes user-level reports. It never writes.
type AnalyticsService struct {
	DB       *gorm.DB
	Bench    BenchmarkLookup
	Settings negotiation.Settings
	Now      func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(db *gorm.DB, bench BenchmarkLookup, st negotiation.Settings) *AnalyticsService {
	return &AnalyticsService{DB: db, Bench: bench, Settings: st, Now: time.Now}
}

// ProgressionReport is the response of the progression endpoint.
type ProgressionReport struct {
	Progression     negotiation.Progression      `json:"progression"`
	Recommendations []negotiation.Recommendation `json:"recommendations"`
	BenchmarkKey    *domain.BenchmarkKey         `json:"benchmark_key,omitempty"`
}

// Analytics summarizes a user's negotiations.
type Analytics struct {
	TotalNegotiations        int64              `json:"total_negotiations"`
	CompletedNegotiations    int64              `json:"completed_negotiations"`
	SessionsByStatus         map[string]int64   `json:"sessions_by_status"`
	OutcomeRates             map[string]float64 `json:"outcome_rates"`
	AverageRounds            *float64           `json:"average_rounds,omitempty"`
	CounterofferDistribution map[string]int64   `json:"counteroffer_distribution"`
	AverageImprovement       *float64           `json:"average_improvement,omitempty"`
	SuccessRate              *float64           `json:"success_rate,omitempty"`
}

func analyticsSpan(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	return otel.Tracer("services/AnalyticsService").Start(ctx, name,
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
}

// Progression analyzes the user's offer ledger. key selects the market data
// to compare against; when its industry or level is blank the most recent
// session that names both is used.
func (s *AnalyticsService) Progression(ctx context.Context, userID string, key domain.BenchmarkKey) (*ProgressionReport, error) {
	ctx, span := analyticsSpan(ctx, "Progression", userID)
	defer span.End()

	offers, err := repo.ListOffersByUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	sessions, err := repo.ListSessions(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	rep := &ProgressionReport{}
	if k, ok := pickBenchmarkKey(key, sessions); ok {
		rep.BenchmarkKey = &k
		key = k
	}
	var bench *domain.BenchmarkEntry
	if rep.BenchmarkKey != nil {
		bench = lookupBenchmark(ctx, s.Bench, key)
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	rep.Progression = negotiation.Analyze(offers, sessions, bench, s.Settings, now.UTC())
	rep.Recommendations = negotiation.Recommend(rep.Progression, bench, s.Settings)
	if rep.Recommendations == nil {
		rep.Recommendations = []negotiation.Recommendation{}
	}
	span.SetAttributes(
		attribute.Int("offers", len(offers)),
		attribute.Bool("benchmark.available", bench != nil),
	)
	return rep, nil
}

// pickBenchmarkKey returns key when it names an industry and level, else
// the key of the newest session that does. sessions are newest first.
func pickBenchmarkKey(key domain.BenchmarkKey, sessions []domain.NegotiationSession) (domain.BenchmarkKey, bool) {
	if strings.TrimSpace(key.Industry) != "" && strings.TrimSpace(key.ExperienceLevel) != "" {
		return key, true
	}
	for i := range sessions {
		if sessions[i].Industry != "" && sessions[i].ExperienceLevel != "" {
			return sessionKey(&sessions[i]), true
		}
	}
	return domain.BenchmarkKey{}, false
}

// Analytics summarizes the user's sessions, offers and counteroffers.
func (s *AnalyticsService) Analytics(ctx context.Context, userID string) (*Analytics, error) {
	ctx, span := analyticsSpan(ctx, "Analytics", userID)
	defer span.End()

	byStatus, err := repo.SessionCountsByStatus(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	dist, err := repo.CounterofferCountsByRecommendation(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	rounds, ok, err := repo.AverageNegotiationRounds(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	offers, err := repo.ListOffersByUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	a := &Analytics{
		SessionsByStatus:         make(map[string]int64, len(byStatus)),
		OutcomeRates:             map[string]float64{},
		CounterofferDistribution: dist,
	}
	for st, n := range byStatus {
		a.SessionsByStatus[string(st)] = n
		a.TotalNegotiations += n
		if negotiation.IsTerminal(st) {
			a.CompletedNegotiations += n
		}
	}
	if a.CompletedNegotiations > 0 {
		for _, st := range []domain.SessionStatus{
			domain.SessionAccepted, domain.SessionDeclined, domain.SessionWithdrawn, domain.SessionExpired,
		} {
			rate := float64(byStatus[st]) / float64(a.CompletedNegotiations) * 100
			a.OutcomeRates[string(st)] = domain.RoundTo(rate, 1)
		}
	}
	if ok {
		r := domain.RoundCents(rounds)
		a.AverageRounds = &r
	}

	p := negotiation.Analyze(offers, nil, nil, s.Settings, time.Now().UTC())
	a.AverageImprovement = p.AverageIncrease
	a.SuccessRate = p.SuccessRate
	return a, nil
}
