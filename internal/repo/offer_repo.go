// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the offer
// ledger. The ledger is append-only: apart from CreateOffer, the only write
// is UpdateOfferStatus.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// CreateOffer inserts o after recomputing its total compensation.
func CreateOffer(ctx context.Context, db *gorm.DB, o *domain.Offer) error {
	now := time.Now().UTC()
	o.ID = uuid.NewString()
	if o.Status == "" {
		o.Status = domain.OfferActive
	}
	if o.ReceivedDate.IsZero() {
		o.ReceivedDate = now
	}
	o.RecomputeTotal()
	o.CreatedAt, o.UpdatedAt = now, now
	return db.WithContext(ctx).Create(o).Error
}

// GetOffer fetches a single offer owned by userID.
func GetOffer(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Offer, error) {
	var o domain.Offer
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOffersByUser returns the user's whole ledger ordered by received date.
func ListOffersByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Offer, error) {
	var out []domain.Offer
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("received_date ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

// ListOffersByJob returns the offers tracked for jobID, oldest first.
func ListOffersByJob(ctx context.Context, db *gorm.DB, userID, jobID string) ([]domain.Offer, error) {
	var out []domain.Offer
	err := db.WithContext(ctx).
		Where("user_id = ? AND job_id = ?", userID, jobID).
		Order("received_date ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

// ListOffersBySession returns the offers attached to a session, oldest first.
func ListOffersBySession(ctx context.Context, db *gorm.DB, negotiationID string) ([]domain.Offer, error) {
	var out []domain.Offer
	err := db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		Order("received_date ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

// CountOffersBySession returns how many offers are attached to a session.
func CountOffersBySession(ctx context.Context, db *gorm.DB, negotiationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("negotiation_id = ?", negotiationID).
		Count(&total).Error
	return total, err
}

// LatestActiveOffer returns the most recently received Active offer for a job.
func LatestActiveOffer(ctx context.Context, db *gorm.DB, userID, jobID string) (*domain.Offer, error) {
	var o domain.Offer
	err := db.WithContext(ctx).
		Where("user_id = ? AND job_id = ? AND status = ?", userID, jobID, domain.OfferActive).
		Order("received_date DESC, created_at DESC").
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOfferStatus sets the status of an offer owned by userID.
func UpdateOfferStatus(ctx context.Context, db *gorm.DB, id, userID string, status domain.OfferStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CloseSessionOffers moves every Active offer of a session to status.
func CloseSessionOffers(ctx context.Context, db *gorm.DB, negotiationID string, status domain.OfferStatus) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("negotiation_id = ? AND status = ?", negotiationID, domain.OfferActive).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
