package benchmark

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/repo"
)

// TableSource reads the internal benchmark table.
type TableSource struct {
	DB *gorm.DB
}

// Name implements Source.
func (s TableSource) Name() string { return "internal_table" }

// Base implements Source.
func (s TableSource) Base(ctx context.Context, industry, level string) (Base, error) {
	rec, err := repo.GetBenchmarkRecord(ctx, s.DB, industry, level)
	if errors.Is(err, repo.ErrNotFound) {
		return Base{}, ErrNotFound
	}
	if err != nil {
		return Base{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	b := Base{
		Min:        rec.Min,
		Median:     rec.Median,
		Max:        rec.Max,
		Benefits:   rec.Benefits,
		SourceYear: rec.SourceYear,
	}
	if p, ok := rec.Percentiles(); ok {
		b.Percentiles = &p
	}
	return b, nil
}
