// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// collections a negotiation session owns: counteroffers, talking points,
// scripts, checklist items, confidence exercises and practice turns.
//
// Items are addressed by their own id and ordered by an explicit Position
// column; callers serialize writes through the session version.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// nextPosition returns one past the highest position of model rows owned by
// negotiationID, or 0 when there are none.
func nextPosition(ctx context.Context, db *gorm.DB, model any, negotiationID string) (int, error) {
	var row struct{ Position *int }
	err := db.WithContext(ctx).
		Model(model).
		Select("position").
		Where("negotiation_id = ?", negotiationID).
		Order("position DESC").
		Limit(1).
		Scan(&row).Error
	if err != nil || row.Position == nil {
		return 0, err
	}
	return *row.Position + 1, nil
}

// CreateCounteroffer persists an evaluation result.
func CreateCounteroffer(ctx context.Context, db *gorm.DB, c *domain.Counteroffer) error {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(c).Error
}

// ReplaceTalkingPoints swaps a session's talking points for pts in one
// transaction, numbering them from 0.
func ReplaceTalkingPoints(ctx context.Context, db *gorm.DB, negotiationID string, pts []domain.TalkingPoint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("negotiation_id = ?", negotiationID).Delete(&domain.TalkingPoint{}).Error; err != nil {
			return err
		}
		if len(pts) == 0 {
			return nil
		}
		now := time.Now().UTC()
		for i := range pts {
			pts[i].ID = uuid.NewString()
			pts[i].NegotiationID = negotiationID
			pts[i].Position = i
			pts[i].CreatedAt = now
		}
		return tx.Create(&pts).Error
	})
}

// AppendScript stores a generated script after the existing ones.
func AppendScript(ctx context.Context, db *gorm.DB, s *domain.Script) error {
	pos, err := nextPosition(ctx, db, &domain.Script{}, s.NegotiationID)
	if err != nil {
		return err
	}
	s.ID = uuid.NewString()
	s.Position = pos
	s.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(s).Error
}

// AppendChecklistItem stores a checklist item after the existing ones.
func AppendChecklistItem(ctx context.Context, db *gorm.DB, it *domain.ChecklistItem) error {
	pos, err := nextPosition(ctx, db, &domain.ChecklistItem{}, it.NegotiationID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	it.ID = uuid.NewString()
	it.Position = pos
	it.CreatedAt, it.UpdatedAt = now, now
	return db.WithContext(ctx).Create(it).Error
}

// GetChecklistItem fetches a checklist item within a session.
func GetChecklistItem(ctx context.Context, db *gorm.DB, negotiationID, id string) (*domain.ChecklistItem, error) {
	var it domain.ChecklistItem
	err := db.WithContext(ctx).
		Where("id = ? AND negotiation_id = ?", id, negotiationID).
		First(&it).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// SetChecklistItemDone sets the done flag; doneAt is cleared when done is false.
func SetChecklistItemDone(ctx context.Context, db *gorm.DB, negotiationID, id string, done bool, at time.Time) error {
	var doneAt *time.Time
	if done {
		doneAt = &at
	}
	res := db.WithContext(ctx).
		Model(&domain.ChecklistItem{}).
		Where("id = ? AND negotiation_id = ?", id, negotiationID).
		Updates(map[string]any{"done": done, "done_at": doneAt, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListExercises returns a session's confidence exercises in order.
func ListExercises(ctx context.Context, db *gorm.DB, negotiationID string) ([]domain.ConfidenceExercise, error) {
	var out []domain.ConfidenceExercise
	err := db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		Order("position ASC").
		Find(&out).Error
	return out, err
}

// GetExercise fetches an exercise within a session.
func GetExercise(ctx context.Context, db *gorm.DB, negotiationID, id string) (*domain.ConfidenceExercise, error) {
	var ex domain.ConfidenceExercise
	err := db.WithContext(ctx).
		Where("id = ? AND negotiation_id = ?", id, negotiationID).
		First(&ex).Error
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// CompleteExercise marks an exercise completed at the given time.
func CompleteExercise(ctx context.Context, db *gorm.DB, negotiationID, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ConfidenceExercise{}).
		Where("id = ? AND negotiation_id = ?", id, negotiationID).
		Updates(map[string]any{"completed": true, "completed_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateConversationTurns stores a user line and the coach reply together.
// The reply is stamped one millisecond after the user line so the pair
// keeps its order when listed by created_at.
func CreateConversationTurns(ctx context.Context, db *gorm.DB, negotiationID, userLine, coachLine string, score *float64) (user, coach *domain.ConversationTurn, err error) {
	now := time.Now().UTC()
	user = &domain.ConversationTurn{
		ID:            uuid.NewString(),
		NegotiationID: negotiationID,
		Role:          "user",
		Content:       userLine,
		CreatedAt:     now,
	}
	coach = &domain.ConversationTurn{
		ID:            uuid.NewString(),
		NegotiationID: negotiationID,
		Role:          "coach",
		Content:       coachLine,
		Score:         score,
		CreatedAt:     now.Add(time.Millisecond),
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(coach).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return user, coach, nil
}

// ListConversationTurns returns the most recent practice turns in
// chronological order. limit <= 0 returns all of them.
func ListConversationTurns(ctx context.Context, db *gorm.DB, negotiationID string, limit int) ([]domain.ConversationTurn, error) {
	var out []domain.ConversationTurn
	q := db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		var total int64
		if err := db.WithContext(ctx).Model(&domain.ConversationTurn{}).
			Where("negotiation_id = ?", negotiationID).Count(&total).Error; err != nil {
			return nil, err
		}
		if off := int(total) - limit; off > 0 {
			q = q.Offset(off)
		}
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
