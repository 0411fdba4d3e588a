// Package services – OfferService
//
// This file implements the OfferService, the job-scoped view of the offer
// ledger: tracking offers received for a job, listing them, moving an Active
// offer to a final status and planning the response timing for the latest
// active offer.
package services

import (
	"context"
	"errors"
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

// OfferRepo defines the repository contract required by OfferService.
type OfferRepo interface {
	// CreateOffer inserts an offer, assigning its id and total.
	CreateOffer(ctx context.Context, db *gorm.DB, o *domain.Offer) error

	// GetOffer fetches an offer ensuring it belongs to the user.
	GetOffer(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Offer, error)

	// ListOffersByJob returns the user's offers for a job, oldest first.
	ListOffersByJob(ctx context.Context, db *gorm.DB, userID, jobID string) ([]domain.Offer, error)

	// LatestActiveOffer returns the most recent Active offer for a job.
	LatestActiveOffer(ctx context.Context, db *gorm.DB, userID, jobID string) (*domain.Offer, error)

	// UpdateOfferStatus sets an offer's status.
	UpdateOfferStatus(ctx context.Context, db *gorm.DB, id, userID string, status domain.OfferStatus) error

	// GetSessionByJob returns the user's latest session for a job.
	GetSessionByJob(ctx context.Context, db *gorm.DB, userID, jobID string) (*domain.NegotiationSession, error)

	// CreateIdempotency records an idempotency key for a created resource.
	CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// OfferService manages offers tracked per job.
type OfferService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the offer repository used by this service.
	Repo OfferRepo
	// IdempotencyTTL is how long an Idempotency-Key replays its offer.
	IdempotencyTTL time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewOfferService constructs an OfferService with defaults.
func NewOfferService(db *gorm.DB, r OfferRepo) *OfferService {
	return &OfferService{DB: db, Repo: r, IdempotencyTTL: 24 * time.Hour, Now: time.Now}
}

func offerSpan(ctx context.Context, name, userID, jobID string) (context.Context, trace.Span) {
	return otel.Tracer("services/OfferService").Start(ctx, name,
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("job.id", jobID),
		),
	)
}

func idemScopeForJob(jobID string) string { return "job:" + jobID }

// Track records an offer received for a job. When the user has a session for
// the job the offer is linked to it. A repeated idempotency key returns the
// original offer with replayed set.
func (s *OfferService) Track(ctx context.Context, userID, jobID string, in OfferInput, idemKey string) (offer *domain.Offer, replayed bool, err error) {
	ctx, span := offerSpan(ctx, "Track", userID, jobID)
	defer span.End()

	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, false, invalid("job_id", "is required")
	}
	scope := idemScopeForJob(jobID)
	key := strings.TrimSpace(idemKey)
	if key != "" {
		if o, ok, err := replayOffer(ctx, s.DB, userID, scope, key); err != nil || ok {
			return o, ok, err
		}
	}

	o, err := buildOffer(userID, in)
	if err != nil {
		return nil, false, err
	}
	o.JobID = jobID
	if o.Company == "" {
		return nil, false, invalid("company", "is required")
	}
	if o.Position == "" {
		return nil, false, invalid("position", "is required")
	}

	var dup bool
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prior, err := s.Repo.ListOffersByJob(ctx, tx, userID, jobID)
		if err != nil {
			return err
		}
		if o.NegotiationRounds == 0 {
			o.NegotiationRounds = len(prior)
		}
		if sess, err := s.Repo.GetSessionByJob(ctx, tx, userID, jobID); err == nil {
			id := sess.ID
			o.NegotiationID = &id
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := s.Repo.CreateOffer(ctx, tx, o); err != nil {
			return err
		}
		if key != "" {
			if _, err := s.Repo.CreateIdempotency(ctx, tx, userID, scope, key, o.ID, 201, s.IdempotencyTTL); err != nil {
				dup = errors.Is(err, repo.ErrDuplicate)
				return err
			}
		}
		return nil
	})
	if dup {
		return replayOffer(ctx, s.DB, userID, scope, key)
	}
	if err != nil {
		return nil, false, err
	}
	return o, false, nil
}

// List returns the offers tracked for a job, oldest first.
func (s *OfferService) List(ctx context.Context, userID, jobID string) ([]domain.Offer, error) {
	ctx, span := offerSpan(ctx, "List", userID, jobID)
	defer span.End()

	return s.Repo.ListOffersByJob(ctx, s.DB, userID, jobID)
}

// UpdateStatus moves an Active offer to a final status. Offers that already
// left Active are not changed again.
func (s *OfferService) UpdateStatus(ctx context.Context, userID, jobID, offerID, status string) (*domain.Offer, error) {
	ctx, span := offerSpan(ctx, "UpdateStatus", userID, jobID)
	defer span.End()

	to, err := domain.ParseOfferStatus(status)
	if err != nil {
		return nil, &ValidationError{Field: "status", Msg: err.Error(), Err: err}
	}

	var out *domain.Offer
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.Repo.GetOffer(ctx, tx, offerID, userID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && o.JobID != jobID) {
			return ErrOfferNotFound
		}
		if err != nil {
			return err
		}
		if o.Status == to {
			out = o
			return nil
		}
		if o.Status != domain.OfferActive || to == domain.OfferActive {
			return ErrInvalidTransition
		}
		if err := s.Repo.UpdateOfferStatus(ctx, tx, o.ID, userID, to); err != nil {
			return err
		}
		o.Status = to
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Timing plans the response to the latest active offer for a job.
func (s *OfferService) Timing(ctx context.Context, userID, jobID string) (*negotiation.TimingStrategy, error) {
	ctx, span := offerSpan(ctx, "Timing", userID, jobID)
	defer span.End()

	o, err := s.Repo.LatestActiveOffer(ctx, s.DB, userID, jobID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	t := negotiation.PlanTiming(*o, now.UTC())
	return &t, nil
}
