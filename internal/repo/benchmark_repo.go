// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the internal
// benchmark table.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// GetBenchmarkRecord looks up the base row for an industry and experience
// level, matching both case-insensitively.
func GetBenchmarkRecord(ctx context.Context, db *gorm.DB, industry, level string) (*domain.BenchmarkRecord, error) {
	var r domain.BenchmarkRecord
	err := db.WithContext(ctx).
		Where("industry = ? AND experience_level = ?",
			strings.ToLower(strings.TrimSpace(industry)),
			strings.ToLower(strings.TrimSpace(level))).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertBenchmarkRecords inserts recs, overwriting the figures of rows that
// already exist for the same industry and level. Keys are stored lowercased.
func UpsertBenchmarkRecords(ctx context.Context, db *gorm.DB, recs []domain.BenchmarkRecord) error {
	if len(recs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range recs {
		recs[i].Industry = strings.ToLower(strings.TrimSpace(recs[i].Industry))
		recs[i].ExperienceLevel = strings.ToLower(strings.TrimSpace(recs[i].ExperienceLevel))
		recs[i].CreatedAt, recs[i].UpdatedAt = now, now
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "industry"}, {Name: "experience_level"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"min", "median", "max", "benefits",
				"p10", "p25", "p50", "p75", "p90",
				"source_year", "updated_at",
			}),
		}).
		Create(&recs).Error
}

// CountBenchmarkRecords returns the number of rows in the benchmark table.
func CountBenchmarkRecords(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.BenchmarkRecord{}).Count(&total).Error
	return total, err
}
