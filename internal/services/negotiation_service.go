// Package services – NegotiationService
//
// This file implements the NegotiationService, which owns the lifecycle of a
// negotiation session: creation with its seeded checklist and exercises,
// paginated listing, edits, offers appended to the session ledger, counteroffer
// evaluation, completion and deadline expiry.
//
// Every write goes through mutate, which reads the session, applies a change
// and persists it with a version compare-and-swap in one transaction. A write
// that carries the client's expected version fails with ErrVersionConflict on
// mismatch; a write without one is retried up to MaxRetries times.
//
// Observability: public methods open OpenTelemetry spans named after the
// method; lifecycle events are published best effort.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/benchmark"
	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/events"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
	"github.com/tbourn/go-negotiation-backend/internal/observability"
	"github.com/tbourn/go-negotiation-backend/internal/playbook"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
)

const negotiationTracer = "services/NegotiationService"

// expirySweepBatch bounds how many overdue sessions one sweep handles.
const expirySweepBatch = 200

// errSkip aborts a mutation without surfacing an error to the caller.
var errSkip = errors.New("skip")

// BenchmarkLookup resolves market data for a benchmark key.
type BenchmarkLookup interface {
	Lookup(ctx context.Context, key domain.BenchmarkKey) (domain.BenchmarkEntry, error)
}

// NegotiationService provides session-level operations and enforces
// ownership, state machine and versioning rules.
type NegotiationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Bench resolves market data. Nil disables benchmark context.
	Bench BenchmarkLookup
	// Coach answers practice lines.
	Coach *playbook.Coach
	// Events receives lifecycle events.
	Events events.Publisher
	// Settings tunes the evaluation engine.
	Settings negotiation.Settings

	// MaxRetries bounds automatic retries for writes without an expected version.
	MaxRetries int
	// IdempotencyTTL is how long an Idempotency-Key replays its offer.
	IdempotencyTTL time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewNegotiationService constructs a NegotiationService with defaults.
func NewNegotiationService(db *gorm.DB, bench BenchmarkLookup, coach *playbook.Coach, pub events.Publisher, st negotiation.Settings) *NegotiationService {
	if pub == nil {
		pub = events.Nop{}
	}
	if coach == nil {
		coach = playbook.NewCoach(playbook.Default())
	}
	return &NegotiationService{
		DB:             db,
		Bench:          bench,
		Coach:          coach,
		Events:         pub,
		Settings:       st,
		MaxRetries:     3,
		IdempotencyTTL: 24 * time.Hour,
		Now:            time.Now,
	}
}

func (s *NegotiationService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *NegotiationService) span(ctx context.Context, name, userID, negID string) (context.Context, trace.Span) {
	return otel.Tracer(negotiationTracer).Start(ctx, name,
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("negotiation.id", negID),
		),
	)
}

// mutate applies fn to the current session inside a transaction and persists
// the result with a version check. fn may write owned rows through tx; they
// roll back together with a failed compare-and-swap.
func (s *NegotiationService) mutate(
	ctx context.Context,
	userID, id string,
	expected *int64,
	fn func(tx *gorm.DB, sess *domain.NegotiationSession) error,
) (*domain.NegotiationSession, error) {
	attempts := 1
	if expected == nil && s.MaxRetries > 0 {
		attempts += s.MaxRetries
	}

	var out *domain.NegotiationSession
	for i := 0; i < attempts; i++ {
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sess, err := repo.GetSession(ctx, tx, id, userID)
			if err != nil {
				return err
			}
			if expected != nil && sess.Version != *expected {
				return repo.ErrStaleVersion
			}
			version := sess.Version
			if err := fn(tx, sess); err != nil {
				return err
			}
			if err := repo.UpdateSessionCAS(ctx, tx, sess, version); err != nil {
				return err
			}
			out = sess
			return nil
		})
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrNegotiationNotFound
		case errors.Is(err, repo.ErrStaleVersion):
			observability.SessionVersionConflicts.Inc()
			if expected != nil {
				return nil, ErrVersionConflict
			}
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrVersionConflict
}

// Create starts a session for the user with the default checklist and
// confidence exercises.
func (s *NegotiationService) Create(ctx context.Context, userID string, in SessionInput) (*domain.NegotiationSession, error) {
	ctx, span := s.span(ctx, "Create", userID, "")
	defer span.End()

	in, err := normalizeSession(in)
	if err != nil {
		return nil, err
	}
	sess := &domain.NegotiationSession{
		UserID:          userID,
		JobID:           in.JobID,
		Company:         in.Company,
		Position:        in.Position,
		Industry:        in.Industry,
		ExperienceLevel: in.ExperienceLevel,
		Location:        in.Location,
		CompanySize:     in.CompanySize,
		Goals:           in.Goals,
		DeadlineDate:    in.DeadlineDate,
		Status:          domain.SessionPreparing,
		ChecklistItems:  defaultChecklist(),
		Exercises:       defaultExercises(),
	}
	if err := repo.CreateSession(ctx, s.DB, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ListPage returns one page of the user's sessions, newest first, optionally
// filtered by status. It applies defaults for invalid page/pageSize.
func (s *NegotiationService) ListPage(ctx context.Context, userID, status string, page, pageSize int) ([]domain.NegotiationSession, int64, error) {
	ctx, span := s.span(ctx, "ListPage", userID, "")
	defer span.End()

	var st domain.SessionStatus
	if strings.TrimSpace(status) != "" {
		parsed, err := negotiation.ParseStatus(status)
		if err != nil {
			return nil, 0, &ValidationError{Field: "status", Msg: err.Error(), Err: err}
		}
		st = parsed
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	total, err := repo.CountSessions(ctx, s.DB, userID, st)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListSessionsPage(ctx, s.DB, userID, st, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get returns a session with all owned collections.
func (s *NegotiationService) Get(ctx context.Context, userID, id string) (*domain.NegotiationSession, error) {
	ctx, span := s.span(ctx, "Get", userID, id)
	defer span.End()

	sess, err := repo.GetSessionDetail(ctx, s.DB, id, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNegotiationNotFound
	}
	return sess, err
}

// Update replaces the editable fields of an open session.
func (s *NegotiationService) Update(ctx context.Context, userID, id string, in SessionInput, expected *int64) (*domain.NegotiationSession, error) {
	ctx, span := s.span(ctx, "Update", userID, id)
	defer span.End()

	in, err := normalizeSession(in)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, id, expected, func(_ *gorm.DB, sess *domain.NegotiationSession) error {
		if sess.IsTerminal() {
			return ErrSessionClosed
		}
		sess.Company = in.Company
		sess.Position = in.Position
		sess.Industry = in.Industry
		sess.ExperienceLevel = in.ExperienceLevel
		sess.Location = in.Location
		sess.CompanySize = in.CompanySize
		sess.Goals = in.Goals
		sess.DeadlineDate = in.DeadlineDate
		if in.JobID != "" {
			sess.JobID = in.JobID
		}
		return nil
	})
}

// Delete soft-deletes a session.
func (s *NegotiationService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := s.span(ctx, "Delete", userID, id)
	defer span.End()

	err := repo.DeleteSession(ctx, s.DB, id, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNegotiationNotFound
	}
	return err
}

// AddOffer appends an offer to the session ledger and advances the session
// status. A repeated idempotency key returns the offer created the first
// time with replayed set.
func (s *NegotiationService) AddOffer(ctx context.Context, userID, negID string, in OfferInput, idemKey string, expected *int64) (offer *domain.Offer, replayed bool, err error) {
	ctx, span := s.span(ctx, "AddOffer", userID, negID)
	defer span.End()

	key := strings.TrimSpace(idemKey)
	if key != "" {
		if o, ok, err := replayOffer(ctx, s.DB, userID, negID, key); err != nil || ok {
			return o, ok, err
		}
	}

	base, err := buildOffer(userID, in)
	if err != nil {
		return nil, false, err
	}

	var dup bool
	_, err = s.mutate(ctx, userID, negID, expected, func(tx *gorm.DB, sess *domain.NegotiationSession) error {
		if sess.IsTerminal() {
			return ErrSessionClosed
		}
		prior, err := repo.ListOffersBySession(ctx, tx, sess.ID)
		if err != nil {
			return err
		}

		o := *base
		o.NegotiationID = &sess.ID
		o.JobID = sess.JobID
		if o.Company == "" {
			o.Company = sess.Company
		}
		if o.Position == "" {
			o.Position = sess.Position
		}
		if o.NegotiationRounds == 0 {
			o.NegotiationRounds = len(prior)
		}
		if len(prior) > 0 && o.Type != domain.OfferInitial && o.InitialOfferAmount == nil {
			first := prior[0].TotalCompensation
			final := o.TotalCompensation
			o.WasNegotiated = true
			o.InitialOfferAmount = &first
			o.FinalOfferAmount = &final
		}
		if err := repo.CreateOffer(ctx, tx, &o); err != nil {
			return err
		}
		if key != "" {
			if _, err := repo.CreateIdempotency(ctx, tx, userID, negID, key, o.ID, 201, s.IdempotencyTTL); err != nil {
				if errors.Is(err, repo.ErrDuplicate) {
					dup = true
				}
				return err
			}
		}
		sess.Status = negotiation.StatusAfterOffer(sess.Status, o.Type)
		offer = &o
		return nil
	})
	if dup {
		return replayOffer(ctx, s.DB, userID, negID, key)
	}
	if err != nil {
		return nil, false, err
	}
	return offer, false, nil
}

// replayOffer returns the offer an idempotency key already produced.
func replayOffer(ctx context.Context, db *gorm.DB, userID, scope, key string) (*domain.Offer, bool, error) {
	rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	o, err := repo.GetOffer(ctx, db, rec.ResourceID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, ErrOfferNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

// EvaluateInput selects the offer to evaluate: a stored offer by id, an
// inline offer, or when both are empty the latest offer of the session.
type EvaluateInput struct {
	OfferID string      `json:"offer_id,omitempty"`
	Offer   *OfferInput `json:"offer,omitempty"`
}

// CounterofferResult pairs the persisted record with the full evaluation.
type CounterofferResult struct {
	Counteroffer *domain.Counteroffer   `json:"counteroffer"`
	Evaluation   negotiation.Evaluation `json:"evaluation"`
}

// EvaluateCounteroffer evaluates an offer against the session goals and
// market data and records the verdict. Missing market data degrades the
// evaluation instead of failing it.
func (s *NegotiationService) EvaluateCounteroffer(ctx context.Context, userID, negID string, in EvaluateInput, expected *int64) (*CounterofferResult, error) {
	ctx, span := s.span(ctx, "EvaluateCounteroffer", userID, negID)
	defer span.End()

	sess, err := repo.GetSession(ctx, s.DB, negID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNegotiationNotFound
	}
	if err != nil {
		return nil, err
	}
	if sess.IsTerminal() {
		return nil, ErrSessionClosed
	}

	offer, err := s.resolveOffer(ctx, userID, sess, in)
	if err != nil {
		return nil, err
	}
	bench := s.benchmarkFor(ctx, sessionKey(sess))

	var res CounterofferResult
	_, err = s.mutate(ctx, userID, negID, expected, func(tx *gorm.DB, cur *domain.NegotiationSession) error {
		if cur.IsTerminal() {
			return ErrSessionClosed
		}
		ev := negotiation.Evaluate(*offer, cur.Goals, bench, s.Settings)
		c := &domain.Counteroffer{
			NegotiationID:        cur.ID,
			OfferTotal:           ev.TotalCompensation,
			Recommendation:       ev.Recommendation,
			Reasoning:            ev.Reasoning,
			MeetsMinimum:         ev.MeetsMinimum,
			MeetsTarget:          ev.MeetsTarget,
			MeetsIdeal:           ev.MeetsIdeal,
			BenchmarkUnavailable: ev.BenchmarkUnavailable,
			Suggestions:          ev.Suggestions,
		}
		if offer.ID != "" {
			id := offer.ID
			c.OfferID = &id
		}
		if err := repo.CreateCounteroffer(ctx, tx, c); err != nil {
			return err
		}
		res = CounterofferResult{Counteroffer: c, Evaluation: ev}
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.NegotiationEvaluations.WithLabelValues(res.Evaluation.Recommendation).Inc()
	return &res, nil
}

func (s *NegotiationService) resolveOffer(ctx context.Context, userID string, sess *domain.NegotiationSession, in EvaluateInput) (*domain.Offer, error) {
	switch {
	case in.OfferID != "":
		o, err := repo.GetOffer(ctx, s.DB, in.OfferID, userID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && (o.NegotiationID == nil || *o.NegotiationID != sess.ID)) {
			return nil, ErrOfferNotFound
		}
		return o, err
	case in.Offer != nil:
		return buildOffer(userID, *in.Offer)
	}
	offers, err := repo.ListOffersBySession(ctx, s.DB, sess.ID)
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, invalid("offer", "no offer to evaluate; supply offer_id or offer")
	}
	return &offers[len(offers)-1], nil
}

// CompleteInput records the user's final decision.
type CompleteInput struct {
	Outcome     string   `json:"outcome"`
	FinalSalary *float64 `json:"final_salary,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// Complete moves the session to a terminal outcome and publishes a completion
// event. The latest active offer takes the outcome; every other active round
// of the session is closed as Expired.
func (s *NegotiationService) Complete(ctx context.Context, userID, negID string, in CompleteInput, expected *int64) (*domain.NegotiationSession, error) {
	ctx, span := s.span(ctx, "Complete", userID, negID)
	defer span.End()

	to, err := negotiation.ParseOutcome(in.Outcome)
	if err != nil {
		return nil, &ValidationError{Field: "outcome", Msg: err.Error(), Err: err}
	}
	if in.FinalSalary != nil {
		if err := checkAmount("final_salary", *in.FinalSalary); err != nil {
			return nil, err
		}
	}

	var from domain.SessionStatus
	now := s.now()
	sess, err := s.mutate(ctx, userID, negID, expected, func(tx *gorm.DB, sess *domain.NegotiationSession) error {
		if !negotiation.IsTransitionAllowed(sess.Status, to) {
			return ErrInvalidTransition
		}
		from = sess.Status
		offers, err := repo.ListOffersBySession(ctx, tx, sess.ID)
		if err != nil {
			return err
		}
		for i := len(offers) - 1; i >= 0; i-- {
			if offers[i].Status != domain.OfferActive {
				continue
			}
			if st, ok := closingOfferStatus(to); ok {
				if err := repo.UpdateOfferStatus(ctx, tx, offers[i].ID, userID, st); err != nil {
					return err
				}
			}
			if to == domain.SessionAccepted && in.FinalSalary == nil {
				total := offers[i].TotalCompensation
				in.FinalSalary = &total
			}
			break
		}
		// Earlier rounds were superseded by the closing one; they are not
		// decisions of their own.
		if _, err := repo.CloseSessionOffers(ctx, tx, sess.ID, domain.OfferExpired); err != nil {
			return err
		}
		sess.Status = to
		sess.Outcome = strings.TrimSpace(in.Notes)
		sess.FinalSalary = in.FinalSalary
		sess.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NegotiationCompleted, sess, from)
	return sess, nil
}

// closingOfferStatus maps a session outcome to the status of the offer it
// was decided on. A withdrawal leaves the offer undecided.
func closingOfferStatus(outcome domain.SessionStatus) (domain.OfferStatus, bool) {
	switch outcome {
	case domain.SessionAccepted:
		return domain.OfferAccepted, true
	case domain.SessionDeclined:
		return domain.OfferDeclined, true
	}
	return "", false
}

// ExpireOverdue moves open sessions past their deadline to Expired and
// expires their active offers. It returns the number of sessions expired.
func (s *NegotiationService) ExpireOverdue(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer(negotiationTracer).Start(ctx, "ExpireOverdue")
	defer span.End()

	now := s.now()
	overdue, err := repo.ListOverdueSessions(ctx, s.DB, now, expirySweepBatch)
	if err != nil {
		return 0, err
	}

	var (
		n    int
		errs []error
	)
	for _, o := range overdue {
		var from domain.SessionStatus
		sess, err := s.mutate(ctx, o.UserID, o.ID, nil, func(tx *gorm.DB, sess *domain.NegotiationSession) error {
			if sess.IsTerminal() || sess.DeadlineDate == nil || !sess.DeadlineDate.Before(now) {
				return errSkip
			}
			from = sess.Status
			if _, err := repo.CloseSessionOffers(ctx, tx, sess.ID, domain.OfferExpired); err != nil {
				return err
			}
			sess.Status = domain.SessionExpired
			sess.CompletedAt = &now
			return nil
		})
		if errors.Is(err, errSkip) || errors.Is(err, ErrNegotiationNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n++
		observability.SessionsExpired.Inc()
		s.publish(ctx, events.NegotiationExpired, sess, from)
	}
	span.SetAttributes(attribute.Int("sessions.expired", n))
	return n, errors.Join(errs...)
}

func (s *NegotiationService) publish(ctx context.Context, typ string, sess *domain.NegotiationSession, from domain.SessionStatus) {
	if s.Events == nil {
		return
	}
	e := events.Event{
		Type:          typ,
		NegotiationID: sess.ID,
		UserID:        sess.UserID,
		From:          string(from),
		To:            string(sess.Status),
		FinalSalary:   sess.FinalSalary,
		OccurredAt:    s.now(),
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		log.Warn().Err(err).
			Str("event", typ).
			Str("negotiation_id", sess.ID).
			Msg("event publish failed")
	}
}

// benchmarkFor resolves market data, returning nil when none is available.
func (s *NegotiationService) benchmarkFor(ctx context.Context, key domain.BenchmarkKey) *domain.BenchmarkEntry {
	return lookupBenchmark(ctx, s.Bench, key)
}

func lookupBenchmark(ctx context.Context, b BenchmarkLookup, key domain.BenchmarkKey) *domain.BenchmarkEntry {
	if b == nil || key.Industry == "" || key.ExperienceLevel == "" {
		return nil
	}
	e, err := b.Lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, benchmark.ErrNotFound) {
			log.Warn().Err(err).
				Str("industry", key.Industry).
				Str("experience_level", key.ExperienceLevel).
				Msg("benchmark lookup failed")
		}
		return nil
	}
	return &e
}

func sessionKey(sess *domain.NegotiationSession) domain.BenchmarkKey {
	return domain.BenchmarkKey{
		Industry:        sess.Industry,
		ExperienceLevel: sess.ExperienceLevel,
		Location:        sess.Location,
		CompanySize:     sess.CompanySize,
	}
}
