// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for negotiation
// sessions.
//
// Sessions are mutated under optimistic concurrency: every write that
// changes a session or one of its owned collections ends with
// UpdateSessionCAS in the same transaction, and a stale expected version
// yields ErrStaleVersion.
//
// Functions:
//
//   - CreateSession(ctx, db, s) -> error
//   - GetSession(ctx, db, id, userID) -> *domain.NegotiationSession, error
//   - GetSessionDetail(ctx, db, id, userID) -> *domain.NegotiationSession, error
//   - GetSessionByJob(ctx, db, userID, jobID) -> *domain.NegotiationSession, error
//   - CountSessions / ListSessionsPage / ListSessions
//   - UpdateSessionCAS(ctx, db, s, expected) -> error
//   - DeleteSession(ctx, db, id, userID) -> error
//   - ListOverdueSessions(ctx, db, now, limit) -> []domain.NegotiationSession, error
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleVersion is returned when a compare-and-swap on a session finds a
// different version than the caller read.
var ErrStaleVersion = errors.New("stale session version")

// openStatuses are the non-terminal session states.
var openStatuses = []domain.SessionStatus{domain.SessionPreparing, domain.SessionInNegotiation}

// CreateSession inserts s together with any owned collection rows already
// attached to it. ID, version, status and timestamps are assigned here.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.NegotiationSession) error {
	now := time.Now().UTC()
	s.ID = uuid.NewString()
	s.Version = 1
	if s.Status == "" {
		s.Status = domain.SessionPreparing
	}
	s.CreatedAt, s.UpdatedAt = now, now
	for i := range s.ChecklistItems {
		it := &s.ChecklistItems[i]
		it.ID, it.NegotiationID, it.Position = uuid.NewString(), s.ID, i
		it.CreatedAt, it.UpdatedAt = now, now
	}
	for i := range s.Exercises {
		ex := &s.Exercises[i]
		ex.ID, ex.NegotiationID, ex.Position = uuid.NewString(), s.ID, i
		ex.CreatedAt, ex.UpdatedAt = now, now
	}
	return db.WithContext(ctx).Create(s).Error
}

// GetSession fetches a session row by id and owner without its collections.
func GetSession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.NegotiationSession, error) {
	var s domain.NegotiationSession
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSessionDetail fetches a session with every owned collection, each in
// display order.
func GetSessionDetail(ctx context.Context, db *gorm.DB, id, userID string) (*domain.NegotiationSession, error) {
	byPosition := func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }
	var s domain.NegotiationSession
	err := db.WithContext(ctx).
		Preload("Offers", func(tx *gorm.DB) *gorm.DB { return tx.Order("received_date asc, created_at asc") }).
		Preload("Counteroffers", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at asc") }).
		Preload("TalkingPoints", byPosition).
		Preload("Scripts", byPosition).
		Preload("ChecklistItems", byPosition).
		Preload("Exercises", byPosition).
		Preload("ConversationTurns", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at asc, role desc") }).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSessionByJob returns the most recent session the user opened for jobID.
func GetSessionByJob(ctx context.Context, db *gorm.DB, userID, jobID string) (*domain.NegotiationSession, error) {
	var s domain.NegotiationSession
	err := db.WithContext(ctx).
		Where("user_id = ? AND job_id = ?", userID, jobID).
		Order("created_at desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func sessionsQuery(ctx context.Context, db *gorm.DB, userID string, status domain.SessionStatus) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.NegotiationSession{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return q
}

// CountSessions returns the number of sessions owned by userID, optionally
// filtered by status.
func CountSessions(ctx context.Context, db *gorm.DB, userID string, status domain.SessionStatus) (int64, error) {
	var total int64
	err := sessionsQuery(ctx, db, userID, status).Count(&total).Error
	return total, err
}

// ListSessionsPage returns a page of sessions, most recent first.
func ListSessionsPage(ctx context.Context, db *gorm.DB, userID string, status domain.SessionStatus, offset, limit int) ([]domain.NegotiationSession, error) {
	var out []domain.NegotiationSession
	err := sessionsQuery(ctx, db, userID, status).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListSessions returns every session owned by userID, oldest first.
func ListSessions(ctx context.Context, db *gorm.DB, userID string) ([]domain.NegotiationSession, error) {
	var out []domain.NegotiationSession
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// UpdateSessionCAS writes the mutable columns of s and bumps its version
// from expected to expected+1. ErrStaleVersion is returned when the row's
// version no longer equals expected.
func UpdateSessionCAS(ctx context.Context, db *gorm.DB, s *domain.NegotiationSession, expected int64) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.NegotiationSession{}).
		Where("id = ? AND version = ?", s.ID, expected).
		Updates(map[string]any{
			"company":            s.Company,
			"position":           s.Position,
			"industry":           s.Industry,
			"experience_level":   s.ExperienceLevel,
			"location":           s.Location,
			"company_size":       s.CompanySize,
			"job_id":             s.JobID,
			"minimum_acceptable": s.Goals.MinimumAcceptable,
			"target_salary":      s.Goals.TargetSalary,
			"ideal_salary":       s.Goals.IdealSalary,
			"status":             s.Status,
			"deadline_date":      s.DeadlineDate,
			"outcome":            s.Outcome,
			"final_salary":       s.FinalSalary,
			"completed_at":       s.CompletedAt,
			"version":            expected + 1,
			"updated_at":         now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	s.Version = expected + 1
	s.UpdatedAt = now
	return nil
}

// DeleteSession soft-deletes a session owned by userID.
func DeleteSession(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.NegotiationSession{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListOverdueSessions returns open sessions whose deadline is before now.
func ListOverdueSessions(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.NegotiationSession, error) {
	var out []domain.NegotiationSession
	q := db.WithContext(ctx).
		Where("status IN ? AND deadline_date IS NOT NULL AND deadline_date < ?", openStatuses, now).
		Order("deadline_date asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
