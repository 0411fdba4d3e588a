package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
)

// ----- repo adapters -----

// dbOfferRepo proxies the repository functions.
type dbOfferRepo struct{}

func (dbOfferRepo) CreateOffer(ctx context.Context, db *gorm.DB, o *domain.Offer) error {
	return repo.CreateOffer(ctx, db, o)
}

func (dbOfferRepo) GetOffer(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Offer, error) {
	return repo.GetOffer(ctx, db, id, userID)
}

func (dbOfferRepo) ListOffersByJob(ctx context.Context, db *gorm.DB, userID, jobID string) ([]domain.Offer, error) {
	return repo.ListOffersByJob(ctx, db, userID, jobID)
}

func (dbOfferRepo) LatestActiveOffer(ctx context.Context, db *gorm.DB, userID, jobID string) (*domain.Offer, error) {
	return repo.LatestActiveOffer(ctx, db, userID, jobID)
}

func (dbOfferRepo) UpdateOfferStatus(ctx context.Context, db *gorm.DB, id, userID string, status domain.OfferStatus) error {
	return repo.UpdateOfferStatus(ctx, db, id, userID, status)
}

func (dbOfferRepo) GetSessionByJob(ctx context.Context, db *gorm.DB, userID, jobID string) (*domain.NegotiationSession, error) {
	return repo.GetSessionByJob(ctx, db, userID, jobID)
}

func (dbOfferRepo) CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, scope, key, resourceID, status, ttl)
}

// fakeOfferRepo returns canned results for LatestActiveOffer.
type fakeOfferRepo struct {
	dbOfferRepo
	latest    *domain.Offer
	latestErr error
	gotJobID  string
}

func (f *fakeOfferRepo) LatestActiveOffer(_ context.Context, _ *gorm.DB, _, jobID string) (*domain.Offer, error) {
	f.gotJobID = jobID
	return f.latest, f.latestErr
}

func newTestOfferService(t *testing.T) *OfferService {
	t.Helper()
	svc := NewOfferService(newSvcDB(t), dbOfferRepo{})
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func jobOffer(t string, base float64) OfferInput {
	in := sampleOffer(t, base)
	in.Company = "Acme"
	in.Position = "Backend Engineer"
	return in
}

// ----- Tests -----

func TestTrack_AssignsRoundsAndLinksSession(t *testing.T) {
	svc := newTestOfferService(t)
	ctx := context.Background()

	first, replayed, err := svc.Track(ctx, "u1", "job-9", jobOffer("Initial", 100000), "")
	if err != nil || replayed {
		t.Fatalf("Track: %v replayed=%v", err, replayed)
	}
	if first.NegotiationRounds != 0 || first.NegotiationID != nil || first.Status != domain.OfferActive {
		t.Fatalf("first = %+v", first)
	}

	sess := &domain.NegotiationSession{
		UserID: "u1", JobID: "job-9", Company: "Acme", Position: "Backend Engineer",
		Goals: domain.NegotiationGoals{MinimumAcceptable: 1, TargetSalary: 2},
	}
	if err := repo.CreateSession(ctx, svc.DB, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	second, _, err := svc.Track(ctx, "u1", "job-9", jobOffer("Counter", 110000), "")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if second.NegotiationRounds != 1 || second.NegotiationID == nil || *second.NegotiationID != sess.ID {
		t.Fatalf("second = %+v", second)
	}

	list, err := svc.List(ctx, "u1", "job-9")
	if err != nil || len(list) != 2 {
		t.Fatalf("List = %d, %v", len(list), err)
	}
}

func TestTrack_Validation(t *testing.T) {
	svc := newTestOfferService(t)
	ctx := context.Background()

	var ve *ValidationError
	if _, _, err := svc.Track(ctx, "u1", " ", jobOffer("Initial", 1), ""); !errors.As(err, &ve) || ve.Field != "job_id" {
		t.Fatalf("blank job err = %v", err)
	}
	noCompany := jobOffer("Initial", 100000)
	noCompany.Company = ""
	if _, _, err := svc.Track(ctx, "u1", "job-1", noCompany, ""); !errors.As(err, &ve) || ve.Field != "company" {
		t.Fatalf("no company err = %v", err)
	}
	zero := jobOffer("Initial", 0)
	if _, _, err := svc.Track(ctx, "u1", "job-1", zero, ""); !errors.As(err, &ve) || ve.Field != "base_salary" {
		t.Fatalf("zero base err = %v", err)
	}
	remote := jobOffer("Initial", 100000)
	remote.RemoteDaysPerWeek = 8
	if _, _, err := svc.Track(ctx, "u1", "job-1", remote, ""); !errors.As(err, &ve) || ve.Field != "remote_days_per_week" {
		t.Fatalf("remote err = %v", err)
	}
	noStatus := jobOffer("Initial", 100000)
	noStatus.Status = ""
	if _, _, err := svc.Track(ctx, "u1", "job-1", noStatus, ""); !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("missing status err = %v", err)
	}
	noPosition := jobOffer("Initial", 100000)
	noPosition.Position = " "
	if _, _, err := svc.Track(ctx, "u1", "job-1", noPosition, ""); !errors.As(err, &ve) || ve.Field != "position" {
		t.Fatalf("no position err = %v", err)
	}
}

func TestTrack_RecordsDecidedOffer(t *testing.T) {
	svc := newTestOfferService(t)
	ctx := context.Background()

	past := jobOffer("Final", 120000)
	past.Status = "Accepted"
	o, _, err := svc.Track(ctx, "u1", "job-old", past, "")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	got, err := repo.GetOffer(ctx, svc.DB, o.ID, "u1")
	if err != nil || got.Status != domain.OfferAccepted {
		t.Fatalf("stored = %+v, %v; want Accepted", got, err)
	}
	// A decided offer is not a candidate for timing advice.
	if _, err := svc.Timing(ctx, "u1", "job-old"); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("Timing err = %v; want ErrOfferNotFound", err)
	}
}

func TestTrack_IdempotencyIsScopedToJob(t *testing.T) {
	svc := newTestOfferService(t)
	ctx := context.Background()

	a, _, err := svc.Track(ctx, "u1", "job-1", jobOffer("Initial", 100000), "same")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	b, replayed, err := svc.Track(ctx, "u1", "job-1", jobOffer("Initial", 100000), "same")
	if err != nil || !replayed || b.ID != a.ID {
		t.Fatalf("replay = %+v replayed=%v err=%v", b, replayed, err)
	}
	c, replayed, err := svc.Track(ctx, "u1", "job-2", jobOffer("Initial", 100000), "same")
	if err != nil || replayed || c.ID == a.ID {
		t.Fatalf("other job = %+v replayed=%v err=%v", c, replayed, err)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc := newTestOfferService(t)
	ctx := context.Background()
	o, _, _ := svc.Track(ctx, "u1", "job-1", jobOffer("Initial", 100000), "")

	var ve *ValidationError
	if _, err := svc.UpdateStatus(ctx, "u1", "job-1", o.ID, "Pending"); !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("bad status err = %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "u1", "job-2", o.ID, "Accepted"); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("wrong job err = %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "u2", "job-1", o.ID, "Accepted"); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("foreign user err = %v", err)
	}

	got, err := svc.UpdateStatus(ctx, "u1", "job-1", o.ID, "Accepted")
	if err != nil || got.Status != domain.OfferAccepted {
		t.Fatalf("UpdateStatus = %+v, %v", got, err)
	}
	// Same status again is a no-op.
	if _, err := svc.UpdateStatus(ctx, "u1", "job-1", o.ID, "Accepted"); err != nil {
		t.Fatalf("repeat UpdateStatus: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "u1", "job-1", o.ID, "Declined"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("leave Accepted err = %v", err)
	}
}

func TestTiming(t *testing.T) {
	svc := newTestOfferService(t)
	ctx := context.Background()

	if _, err := svc.Timing(ctx, "u1", "job-1"); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("no offer err = %v", err)
	}

	in := jobOffer("Initial", 100000)
	deadline := fixedNow.Add(72 * time.Hour)
	in.DeadlineDate = &deadline
	if _, _, err := svc.Track(ctx, "u1", "job-1", in, ""); err != nil {
		t.Fatalf("Track: %v", err)
	}
	ts, err := svc.Timing(ctx, "u1", "job-1")
	if err != nil || ts == nil {
		t.Fatalf("Timing = %+v, %v", ts, err)
	}
	if ts.Urgency != "medium" || ts.HoursRemaining != 72 {
		t.Fatalf("urgency=%q hours=%v", ts.Urgency, ts.HoursRemaining)
	}
}

func TestTiming_PropagatesRepoErrors(t *testing.T) {
	boom := errors.New("boom")
	fr := &fakeOfferRepo{latestErr: boom}
	svc := NewOfferService(nil, fr)

	if _, err := svc.Timing(context.Background(), "u1", "job-7"); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want boom", err)
	}
	if fr.gotJobID != "job-7" {
		t.Fatalf("job id = %q", fr.gotJobID)
	}
}
