package benchmark

import (
	"context"
	"math"

	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
)

// seedYear is the survey year of the built-in table.
const seedYear = 2024

// seedMedians are national base medians by industry and experience level.
var seedMedians = map[string]map[string]float64{
	"technology": {"entry": 85000, "mid": 120000, "senior": 155000, "lead": 185000, "executive": 240000},
	"finance":    {"entry": 75000, "mid": 105000, "senior": 140000, "lead": 170000, "executive": 230000},
	"healthcare": {"entry": 62000, "mid": 85000, "senior": 110000, "lead": 135000, "executive": 190000},
	"consulting": {"entry": 72000, "mid": 98000, "senior": 130000, "lead": 160000, "executive": 215000},
	"education":  {"entry": 48000, "mid": 62000, "senior": 78000, "lead": 95000, "executive": 140000},
	"retail":     {"entry": 45000, "mid": 60000, "senior": 80000, "lead": 100000, "executive": 150000},
}

// Percentile points relative to the median, and the benefits share.
const (
	p10Ratio     = 0.72
	p25Ratio     = 0.85
	p75Ratio     = 1.17
	p90Ratio     = 1.36
	minRatio     = 0.62
	maxRatio     = 1.60
	benefitShare = 0.18
)

func roundHundred(v float64) float64 { return math.Round(v/100) * 100 }

// DefaultRecords returns the built-in benchmark table.
func DefaultRecords() []domain.BenchmarkRecord {
	var out []domain.BenchmarkRecord
	for industry, levels := range seedMedians {
		for level, m := range levels {
			p := func(r float64) *float64 { v := roundHundred(m * r); return &v }
			out = append(out, domain.BenchmarkRecord{
				Industry:        industry,
				ExperienceLevel: level,
				Min:             roundHundred(m * minRatio),
				Median:          m,
				Max:             roundHundred(m * maxRatio),
				Benefits:        roundHundred(m * benefitShare),
				P10:             p(p10Ratio),
				P25:             p(p25Ratio),
				P50:             p(1),
				P75:             p(p75Ratio),
				P90:             p(p90Ratio),
				SourceYear:      seedYear,
			})
		}
	}
	return out
}

// Seed loads DefaultRecords into an empty benchmark table and returns the
// number of rows written. A populated table is left untouched.
func Seed(ctx context.Context, db *gorm.DB) (int, error) {
	n, err := repo.CountBenchmarkRecords(ctx, db)
	if err != nil || n > 0 {
		return 0, err
	}
	recs := DefaultRecords()
	if err := repo.UpsertBenchmarkRecords(ctx, db, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}
