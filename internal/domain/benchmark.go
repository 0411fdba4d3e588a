package domain

import (
	"strings"
	"time"
)

// BenchmarkKey identifies a salary distribution.
type BenchmarkKey struct {
	Industry        string `json:"industry"`
	ExperienceLevel string `json:"experience_level"`
	Location        string `json:"location"`
	CompanySize     string `json:"company_size"`
}

// Normalized lowercases and trims every component so keys compare equal
// regardless of how callers spelled them.
func (k BenchmarkKey) Normalized() BenchmarkKey {
	n := func(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }
	return BenchmarkKey{
		Industry:        n(k.Industry),
		ExperienceLevel: n(k.ExperienceLevel),
		Location:        n(k.Location),
		CompanySize:     n(k.CompanySize),
	}
}

// Percentiles is the five-point percentile table of a distribution.
type Percentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// Points returns the table as (percentile, value) pairs in ascending order.
func (p Percentiles) Points() [5][2]float64 {
	return [5][2]float64{{10, p.P10}, {25, p.P25}, {50, p.P50}, {75, p.P75}, {90, p.P90}}
}

// Monotonic reports whether every point is positive and non-decreasing.
func (p Percentiles) Monotonic() bool {
	pts := p.Points()
	if pts[0][1] <= 0 {
		return false
	}
	for i := 1; i < len(pts); i++ {
		if pts[i][1] < pts[i-1][1] {
			return false
		}
	}
	return true
}

// Scale multiplies every point by f.
func (p Percentiles) Scale(f float64) Percentiles {
	return Percentiles{
		P10: RoundCents(p.P10 * f),
		P25: RoundCents(p.P25 * f),
		P50: RoundCents(p.P50 * f),
		P75: RoundCents(p.P75 * f),
		P90: RoundCents(p.P90 * f),
	}
}

// BenchmarkEntry is a salary distribution for a BenchmarkKey.
type BenchmarkEntry struct {
	Key          BenchmarkKey `json:"key"`
	Min          float64      `json:"min"`
	Median       float64      `json:"median"`
	Max          float64      `json:"max"`
	Benefits     float64      `json:"benefits"`
	Percentiles  Percentiles  `json:"percentiles"`
	SourceYear   int          `json:"source_year"`
	Source       string       `json:"source"`
	FetchedAt    time.Time    `json:"fetched_at"`
	CacheAgeDays int          `json:"cache_age_days"`
}

// BenchmarkRecord is a row of the internal benchmark table: a base
// distribution for an industry and experience level before location and
// company size adjustments. Percentile columns are nullable; a row without
// them cannot answer a lookup.
type BenchmarkRecord struct {
	ID              uint     `json:"id" gorm:"primaryKey"`
	Industry        string   `json:"industry"         gorm:"type:varchar(128);not null;uniqueIndex:ux_benchmark_industry_level,priority:1"`
	ExperienceLevel string   `json:"experience_level" gorm:"type:varchar(64);not null;uniqueIndex:ux_benchmark_industry_level,priority:2"`
	Min             float64  `json:"min"`
	Median          float64  `json:"median"`
	Max             float64  `json:"max"`
	Benefits        float64  `json:"benefits"`
	P10             *float64 `json:"p10,omitempty"`
	P25             *float64 `json:"p25,omitempty"`
	P50             *float64 `json:"p50,omitempty"`
	P75             *float64 `json:"p75,omitempty"`
	P90             *float64 `json:"p90,omitempty"`
	SourceYear      int      `json:"source_year"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for BenchmarkRecord.
func (BenchmarkRecord) TableName() string { return "benchmark_records" }

// Percentiles returns the record's percentile table, or ok=false when any
// point is missing.
func (r BenchmarkRecord) Percentiles() (Percentiles, bool) {
	if r.P10 == nil || r.P25 == nil || r.P50 == nil || r.P75 == nil || r.P90 == nil {
		return Percentiles{}, false
	}
	return Percentiles{P10: *r.P10, P25: *r.P25, P50: *r.P50, P75: *r.P75, P90: *r.P90}, true
}
