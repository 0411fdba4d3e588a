// Package benchmark resolves market salary distributions for an industry,
// experience level, location and company size.
//
// A Provider asks its Sources in order for the base distribution of an
// industry and level, scales it by the configured location and company-size
// multipliers and caches the result per key and 30-day bucket. Concurrent
// misses for the same key share one upstream call.
//
// Callers must treat both ErrNotFound and ErrUnavailable as "no benchmark":
// figures are never fabricated when a source has no percentile table.
package benchmark

import (
	"context"
	"errors"
	"strings"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

var (
	// ErrNotFound means no source covers the key, or the covering source
	// has no usable percentile table.
	ErrNotFound = errors.New("benchmark not found")
	// ErrUnavailable means every source that could answer failed or timed out.
	ErrUnavailable = errors.New("benchmark unavailable")
)

// Base is an unadjusted distribution for an industry and experience level.
type Base struct {
	Min         float64
	Median      float64
	Max         float64
	Benefits    float64
	Percentiles *domain.Percentiles
	SourceYear  int
}

// Source yields base distributions. Implementations return ErrNotFound when
// they have no row for the pair and any other error when they cannot answer.
type Source interface {
	Name() string
	Base(ctx context.Context, industry, level string) (Base, error)
}

// Multipliers scale a base distribution by location and company size.
// Keys are lowercase; unknown or empty keys scale by 1.
type Multipliers struct {
	Location    map[string]float64
	CompanySize map[string]float64
}

// Factor returns the combined multiplier for k.
func (m Multipliers) Factor(k domain.BenchmarkKey) float64 {
	return lookupFactor(m.Location, k.Location) * lookupFactor(m.CompanySize, k.CompanySize)
}

func lookupFactor(table map[string]float64, key string) float64 {
	if f, ok := table[strings.ToLower(strings.TrimSpace(key))]; ok && f > 0 {
		return f
	}
	return 1
}
