// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) in the HTTP layer and for the
// user analytics endpoint. Each function is context-aware and safe to call
// from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// latestUpdate counts the rows of q and returns the greatest updated_at.
// Sorting instead of MAX() keeps SQLite from returning the value as TEXT.
func latestUpdate(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// NegotiationsStats returns the number of sessions owned by userID and the
// newest UpdatedAt among them. maxUpdatedAt is nil when there are none.
func NegotiationsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	return latestUpdate(db.WithContext(ctx).Model(&domain.NegotiationSession{}).Where("user_id = ?", userID))
}

// OffersStats returns the number of offers tracked for a job and the newest
// UpdatedAt among them.
func OffersStats(ctx context.Context, db *gorm.DB, userID, jobID string) (count int64, maxUpdatedAt *time.Time, err error) {
	return latestUpdate(db.WithContext(ctx).Model(&domain.Offer{}).Where("user_id = ? AND job_id = ?", userID, jobID))
}

// SessionCountsByStatus groups the user's sessions by status.
func SessionCountsByStatus(ctx context.Context, db *gorm.DB, userID string) (map[domain.SessionStatus]int64, error) {
	var rows []struct {
		Status domain.SessionStatus
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.NegotiationSession{}).
		Select("status, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.SessionStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// CounterofferCountsByRecommendation groups the verdicts recorded across
// the user's live sessions.
func CounterofferCountsByRecommendation(ctx context.Context, db *gorm.DB, userID string) (map[string]int64, error) {
	var rows []struct {
		Recommendation string
		N              int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Counteroffer{}).
		Select("counteroffers.recommendation AS recommendation, COUNT(*) AS n").
		Joins("JOIN negotiation_sessions ns ON ns.id = counteroffers.negotiation_id").
		Where("ns.user_id = ? AND ns.deleted_at IS NULL", userID).
		Group("counteroffers.recommendation").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Recommendation] = r.N
	}
	return out, nil
}

// AverageNegotiationRounds returns the mean round count over the user's
// offers that went through at least one round. ok is false when none did.
func AverageNegotiationRounds(ctx context.Context, db *gorm.DB, userID string) (avg float64, ok bool, err error) {
	var row struct{ Avg *float64 }
	err = db.WithContext(ctx).
		Model(&domain.Offer{}).
		Select("AVG(negotiation_rounds) AS avg").
		Where("user_id = ? AND negotiation_rounds > 0", userID).
		Scan(&row).Error
	if err != nil || row.Avg == nil {
		return 0, false, err
	}
	return *row.Avg, true, nil
}
