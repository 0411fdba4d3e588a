package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-negotiation-backend/internal/benchmark"
	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/events"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
	"github.com/tbourn/go-negotiation-backend/internal/observability"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
)

func TestCreate_SeedsChecklistAndExercises(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "u1", sampleSession())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Status != domain.SessionPreparing || sess.Version != 1 {
		t.Fatalf("status=%q version=%d", sess.Status, sess.Version)
	}

	got, err := svc.Get(ctx, "u1", sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.ChecklistItems) != len(defaultChecklist()) {
		t.Fatalf("checklist = %d items", len(got.ChecklistItems))
	}
	if len(got.Exercises) != len(defaultExercises()) {
		t.Fatalf("exercises = %d items", len(got.Exercises))
	}
	for i, it := range got.ChecklistItems {
		if it.Position != i || it.ID == "" {
			t.Fatalf("checklist[%d] = %+v", i, it)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		edit  func(*SessionInput)
		field string
	}{
		{"missing company", func(in *SessionInput) { in.Company = "  " }, "company"},
		{"missing position", func(in *SessionInput) { in.Position = "" }, "position"},
		{"negative minimum", func(in *SessionInput) { in.Goals.MinimumAcceptable = -1 }, "goals.minimum_acceptable"},
		{"zero target", func(in *SessionInput) { in.Goals.TargetSalary = 0; in.Goals.MinimumAcceptable = 0 }, "goals.target_salary"},
		{"misordered", func(in *SessionInput) { in.Goals.MinimumAcceptable = 170000 }, "goals"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := sampleSession()
			tc.edit(&in)
			_, err := svc.Create(ctx, "u1", in)
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("err = %v; want ValidationError on %q", err, tc.field)
			}
		})
	}
}

func TestListPage_FilterAndPaging(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, "u1", sampleSession()); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := svc.Create(ctx, "u2", sampleSession()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	items, total, err := svc.ListPage(ctx, "u1", "", 1, 2)
	if err != nil || total != 3 || len(items) != 2 {
		t.Fatalf("page 1: items=%d total=%d err=%v", len(items), total, err)
	}
	items, _, _ = svc.ListPage(ctx, "u1", "", 2, 2)
	if len(items) != 1 {
		t.Fatalf("page 2: items=%d", len(items))
	}
	items, total, _ = svc.ListPage(ctx, "u1", "Accepted", 1, 20)
	if total != 0 || len(items) != 0 {
		t.Fatalf("Accepted filter: items=%d total=%d", len(items), total)
	}

	_, _, err = svc.ListPage(ctx, "u1", "Bogus", 1, 20)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("err = %v; want status validation", err)
	}
}

func TestUpdate_VersionConflict(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "u1", sampleSession())
	before := testutil.ToFloat64(observability.SessionVersionConflicts)

	in := sampleSession()
	in.Company = "Globex"
	updated, err := svc.Update(ctx, "u1", sess.ID, in, i64(1))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 || updated.Company != "Globex" {
		t.Fatalf("updated = version %d company %q", updated.Version, updated.Company)
	}

	if _, err := svc.Update(ctx, "u1", sess.ID, in, i64(1)); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale update err = %v; want ErrVersionConflict", err)
	}
	if got := testutil.ToFloat64(observability.SessionVersionConflicts) - before; got != 1 {
		t.Fatalf("conflict counter delta = %v; want 1", got)
	}

	// No version: last writer wins.
	if _, err := svc.Update(ctx, "u1", sess.ID, in, nil); err != nil {
		t.Fatalf("unversioned Update: %v", err)
	}
}

func TestUpdate_NotFoundAndOwnership(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()

	sess, _ := svc.Create(ctx, "u1", sampleSession())
	if _, err := svc.Update(ctx, "u2", sess.ID, sampleSession(), nil); !errors.Is(err, ErrNegotiationNotFound) {
		t.Fatalf("foreign update err = %v", err)
	}
	if _, err := svc.Get(ctx, "u1", "nope"); !errors.Is(err, ErrNegotiationNotFound) {
		t.Fatalf("Get err = %v", err)
	}
}

func TestAddOffer_AdvancesStatusAndTracksNegotiation(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())

	first, replayed, err := svc.AddOffer(ctx, "u1", sess.ID, sampleOffer("Initial", 130000), "", nil)
	if err != nil || replayed {
		t.Fatalf("AddOffer initial: %v replayed=%v", err, replayed)
	}
	if first.TotalCompensation != 135000 {
		t.Fatalf("total = %v; want 135000", first.TotalCompensation)
	}
	if first.Company != "Acme" || first.JobID != "job-1" {
		t.Fatalf("offer did not inherit session context: %+v", first)
	}
	got, _ := svc.Get(ctx, "u1", sess.ID)
	if got.Status != domain.SessionPreparing {
		t.Fatalf("status after Initial = %q", got.Status)
	}

	second, _, err := svc.AddOffer(ctx, "u1", sess.ID, sampleOffer("Counter", 150000), "", nil)
	if err != nil {
		t.Fatalf("AddOffer counter: %v", err)
	}
	if !second.WasNegotiated || second.NegotiationRounds != 1 {
		t.Fatalf("second offer = %+v", second)
	}
	if second.InitialOfferAmount == nil || *second.InitialOfferAmount != 135000 {
		t.Fatalf("initial amount = %v", second.InitialOfferAmount)
	}
	if second.FinalOfferAmount == nil || *second.FinalOfferAmount != 155000 {
		t.Fatalf("final amount = %v", second.FinalOfferAmount)
	}
	got, _ = svc.Get(ctx, "u1", sess.ID)
	if got.Status != domain.SessionInNegotiation {
		t.Fatalf("status after Counter = %q", got.Status)
	}
	if len(got.Offers) != 2 {
		t.Fatalf("offers = %d", len(got.Offers))
	}
}

func TestAddOffer_Validation(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())

	bad := sampleOffer("Initial", 130000)
	bad.SigningBonus = -5
	_, _, err := svc.AddOffer(ctx, "u1", sess.ID, bad, "", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "signing_bonus" {
		t.Fatalf("err = %v; want signing_bonus validation", err)
	}

	bad = sampleOffer("Verbal", 130000)
	if _, _, err := svc.AddOffer(ctx, "u1", sess.ID, bad, "", nil); !errors.As(err, &ve) || ve.Field != "type" {
		t.Fatalf("err = %v; want type validation", err)
	}

	for _, status := range []string{"", "  ", "Pending", "accepted"} {
		bad = sampleOffer("Initial", 130000)
		bad.Status = status
		_, _, err := svc.AddOffer(ctx, "u1", sess.ID, bad, "", nil)
		if !errors.As(err, &ve) || ve.Field != "status" {
			t.Fatalf("status %q: err = %v; want status validation", status, err)
		}
	}
	if n, _ := repo.CountOffersBySession(ctx, svc.DB, sess.ID); n != 0 {
		t.Fatalf("offers stored = %d after rejected input", n)
	}
}

func TestAddOffer_IdempotencyKeyReplays(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())

	a, replayed, err := svc.AddOffer(ctx, "u1", sess.ID, sampleOffer("Initial", 130000), "k-1", nil)
	if err != nil || replayed {
		t.Fatalf("first AddOffer: %v replayed=%v", err, replayed)
	}
	b, replayed, err := svc.AddOffer(ctx, "u1", sess.ID, sampleOffer("Initial", 130000), "k-1", nil)
	if err != nil || !replayed {
		t.Fatalf("second AddOffer: %v replayed=%v", err, replayed)
	}
	if a.ID != b.ID {
		t.Fatalf("replayed id %s != %s", b.ID, a.ID)
	}
	if n, _ := repo.CountOffersBySession(ctx, svc.DB, sess.ID); n != 1 {
		t.Fatalf("offers stored = %d; want 1", n)
	}
}

func TestEvaluateCounteroffer_BelowMinimum(t *testing.T) {
	bench := &fakeBench{entry: techSenior()}
	svc, _ := newTestNegotiationService(t, bench)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())
	offer, _, _ := svc.AddOffer(ctx, "u1", sess.ID, sampleOffer("Initial", 120000), "", nil)

	before := testutil.ToFloat64(observability.NegotiationEvaluations.WithLabelValues(negotiation.VerdictCounter))
	res, err := svc.EvaluateCounteroffer(ctx, "u1", sess.ID, EvaluateInput{OfferID: offer.ID}, nil)
	if err != nil {
		t.Fatalf("EvaluateCounteroffer: %v", err)
	}
	if res.Evaluation.Recommendation != negotiation.VerdictCounter {
		t.Fatalf("recommendation = %q", res.Evaluation.Recommendation)
	}
	if res.Evaluation.MeetsMinimum || res.Evaluation.BenchmarkUnavailable {
		t.Fatalf("evaluation = %+v", res.Evaluation)
	}
	if res.Counteroffer.ID == "" || res.Counteroffer.OfferID == nil || *res.Counteroffer.OfferID != offer.ID {
		t.Fatalf("counteroffer = %+v", res.Counteroffer)
	}
	if got := testutil.ToFloat64(observability.NegotiationEvaluations.WithLabelValues(negotiation.VerdictCounter)) - before; got != 1 {
		t.Fatalf("evaluation counter delta = %v", got)
	}
	if len(bench.keys) == 0 || bench.keys[0].Industry != "Technology" {
		t.Fatalf("benchmark keys = %+v", bench.keys)
	}

	got, _ := svc.Get(ctx, "u1", sess.ID)
	if len(got.Counteroffers) != 1 {
		t.Fatalf("persisted counteroffers = %d", len(got.Counteroffers))
	}
}

func TestEvaluateCounteroffer_IdealOfferAccepts(t *testing.T) {
	svc, _ := newTestNegotiationService(t, &fakeBench{entry: techSenior()})
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())

	inline := sampleOffer("Final", 175000) // 175000 + 5000 signing = ideal
	res, err := svc.EvaluateCounteroffer(ctx, "u1", sess.ID, EvaluateInput{Offer: &inline}, nil)
	if err != nil {
		t.Fatalf("EvaluateCounteroffer: %v", err)
	}
	ev := res.Evaluation
	if ev.Recommendation != negotiation.VerdictAccept || !ev.MeetsMinimum || !ev.MeetsTarget || !ev.MeetsIdeal {
		t.Fatalf("evaluation = %+v", ev)
	}
	if res.Counteroffer.OfferID != nil {
		t.Fatalf("inline offer should not be linked: %v", *res.Counteroffer.OfferID)
	}
}

func TestEvaluateCounteroffer_BenchmarkUnavailableDegrades(t *testing.T) {
	svc, _ := newTestNegotiationService(t, &fakeBench{err: benchmark.ErrUnavailable})
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())
	_, _, _ = svc.AddOffer(ctx, "u1", sess.ID, sampleOffer("Initial", 150000), "", nil)

	res, err := svc.EvaluateCounteroffer(ctx, "u1", sess.ID, EvaluateInput{}, nil)
	if err != nil {
		t.Fatalf("EvaluateCounteroffer: %v", err)
	}
	if !res.Evaluation.BenchmarkUnavailable || !res.Counteroffer.BenchmarkUnavailable {
		t.Fatalf("expected benchmark_unavailable: %+v", res.Evaluation)
	}
}

func TestEvaluateCounteroffer_Errors(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())

	_, err := svc.EvaluateCounteroffer(ctx, "u1", sess.ID, EvaluateInput{}, nil)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "offer" {
		t.Fatalf("no offer err = %v", err)
	}
	if _, err := svc.EvaluateCounteroffer(ctx, "u1", sess.ID, EvaluateInput{OfferID: "missing"}, nil); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("missing offer err = %v", err)
	}
	if _, err := svc.EvaluateCounteroffer(ctx, "u1", "missing", EvaluateInput{}, nil); !errors.Is(err, ErrNegotiationNotFound) {
		t.Fatalf("missing session err = %v", err)
	}
}

func TestComplete_AcceptedClosesSession(t *testing.T) {
	svc, rec := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())
	older, _, _ := svc.AddOffer(ctx, "u1", sess.ID, sampleOffer("Initial", 140000), "", nil)
	counter := sampleOffer("Counter", 158000)
	later := fixedNow.Add(-time.Hour)
	counter.ReceivedDate = &later
	latest, _, _ := svc.AddOffer(ctx, "u1", sess.ID, counter, "", nil)

	done, err := svc.Complete(ctx, "u1", sess.ID, CompleteInput{Outcome: "Accepted", Notes: "signed"}, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != domain.SessionAccepted || done.CompletedAt == nil || !done.CompletedAt.Equal(fixedNow) {
		t.Fatalf("completed session = %+v", done)
	}
	if done.FinalSalary == nil || *done.FinalSalary != 163000 {
		t.Fatalf("final salary = %v; want latest offer total", done.FinalSalary)
	}

	acc, _ := repo.GetOffer(ctx, svc.DB, latest.ID, "u1")
	old, _ := repo.GetOffer(ctx, svc.DB, older.ID, "u1")
	if acc.Status != domain.OfferAccepted || old.Status != domain.OfferExpired {
		t.Fatalf("offer statuses = %q / %q; want the earlier round superseded", acc.Status, old.Status)
	}

	evs := rec.Events()
	if len(evs) != 1 || evs[0].Type != events.NegotiationCompleted || evs[0].From != "In Negotiation" || evs[0].To != "Accepted" {
		t.Fatalf("events = %+v", evs)
	}

	if _, _, err := svc.AddOffer(ctx, "u1", sess.ID, sampleOffer("Counter", 170000), "", nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("AddOffer after close err = %v", err)
	}
	if _, err := svc.Complete(ctx, "u1", sess.ID, CompleteInput{Outcome: "Declined"}, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Complete err = %v", err)
	}
	if _, err := svc.Update(ctx, "u1", sess.ID, sampleSession(), nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Update after close err = %v", err)
	}
}

func TestComplete_OneLedgerOutcomePerSession(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()

	addRounds := func(sessID string) []*domain.Offer {
		var out []*domain.Offer
		for i, r := range []struct {
			typ  string
			base float64
		}{{"Initial", 140000}, {"Counter", 150000}, {"Final", 155000}} {
			in := sampleOffer(r.typ, r.base)
			at := fixedNow.Add(time.Duration(i-72) * time.Hour)
			in.ReceivedDate = &at
			o, _, err := svc.AddOffer(ctx, "u1", sessID, in, "", nil)
			if err != nil {
				t.Fatalf("AddOffer %s: %v", r.typ, err)
			}
			out = append(out, o)
		}
		return out
	}

	sess, _ := svc.Create(ctx, "u1", sampleSession())
	rounds := addRounds(sess.ID)
	if _, err := svc.Complete(ctx, "u1", sess.ID, CompleteInput{Outcome: "Accepted"}, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := []domain.OfferStatus{domain.OfferExpired, domain.OfferExpired, domain.OfferAccepted}
	for i, o := range rounds {
		got, _ := repo.GetOffer(ctx, svc.DB, o.ID, "u1")
		if got.Status != want[i] {
			t.Fatalf("round %d status = %q; want %q", i, got.Status, want[i])
		}
	}

	an := NewAnalyticsService(svc.DB, nil, negotiation.DefaultSettings())
	an.Now = func() time.Time { return fixedNow }
	rep, err := an.Progression(ctx, "u1", domain.BenchmarkKey{})
	if err != nil {
		t.Fatalf("Progression: %v", err)
	}
	p := rep.Progression
	if p.SuccessRate == nil || *p.SuccessRate != 100 {
		t.Fatalf("success rate = %v; want 100 for one accepted negotiation", p.SuccessRate)
	}
	// 145k → 160k including the signing bonus.
	if p.NegotiatedOffers != 1 || p.AverageIncrease == nil || *p.AverageIncrease != 10.3 {
		t.Fatalf("negotiated = %d avg = %v; want a single +10.3%%", p.NegotiatedOffers, p.AverageIncrease)
	}
	for _, r := range rep.Recommendations {
		if r.Type == negotiation.RecOfferConversion {
			t.Fatalf("unexpected %s recommendation: %+v", r.Type, rep.Recommendations)
		}
	}

	// Declining marks only the closing round; withdrawing decides nothing.
	declined, _ := svc.Create(ctx, "u1", sampleSession())
	dr := addRounds(declined.ID)
	if _, err := svc.Complete(ctx, "u1", declined.ID, CompleteInput{Outcome: "Declined"}, nil); err != nil {
		t.Fatalf("Complete declined: %v", err)
	}
	withdrawn, _ := svc.Create(ctx, "u1", sampleSession())
	wr := addRounds(withdrawn.ID)
	if _, err := svc.Complete(ctx, "u1", withdrawn.ID, CompleteInput{Outcome: "Withdrawn"}, nil); err != nil {
		t.Fatalf("Complete withdrawn: %v", err)
	}
	if got, _ := repo.GetOffer(ctx, svc.DB, dr[2].ID, "u1"); got.Status != domain.OfferDeclined {
		t.Fatalf("declined closing round = %q", got.Status)
	}
	for _, o := range []*domain.Offer{dr[0], dr[1], wr[0], wr[1], wr[2]} {
		if got, _ := repo.GetOffer(ctx, svc.DB, o.ID, "u1"); got.Status != domain.OfferExpired {
			t.Fatalf("offer %s status = %q; want Expired", o.ID, got.Status)
		}
	}

	rep, _ = an.Progression(ctx, "u1", domain.BenchmarkKey{})
	if p := rep.Progression; p.SuccessRate == nil || *p.SuccessRate != 50 || p.NegotiatedOffers != 3 {
		t.Fatalf("after three sessions: rate = %v negotiated = %d; want 50 and 3", p.SuccessRate, p.NegotiatedOffers)
	}
}

func TestComplete_RejectsExpiredOutcome(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())

	_, err := svc.Complete(ctx, "u1", sess.ID, CompleteInput{Outcome: "Expired"}, nil)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "outcome" {
		t.Fatalf("err = %v; want outcome validation", err)
	}
	_, err = svc.Complete(ctx, "u1", sess.ID, CompleteInput{Outcome: "Declined", FinalSalary: f64(-1)}, nil)
	if !errors.As(err, &ve) || ve.Field != "final_salary" {
		t.Fatalf("err = %v; want final_salary validation", err)
	}
}

func TestExpireOverdue(t *testing.T) {
	svc, rec := newTestNegotiationService(t, nil)
	ctx := context.Background()

	past := fixedNow.Add(-time.Hour)
	in := sampleSession()
	in.DeadlineDate = &past
	overdue, _ := svc.Create(ctx, "u1", in)
	offer, _, _ := svc.AddOffer(ctx, "u1", overdue.ID, sampleOffer("Initial", 140000), "", nil)

	future := fixedNow.Add(24 * time.Hour)
	in.DeadlineDate = &future
	pending, _ := svc.Create(ctx, "u1", in)

	before := testutil.ToFloat64(observability.SessionsExpired)
	n, err := svc.ExpireOverdue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ExpireOverdue = %d, %v", n, err)
	}
	if got := testutil.ToFloat64(observability.SessionsExpired) - before; got != 1 {
		t.Fatalf("expired counter delta = %v", got)
	}

	got, _ := svc.Get(ctx, "u1", overdue.ID)
	if got.Status != domain.SessionExpired {
		t.Fatalf("overdue status = %q", got.Status)
	}
	o, _ := repo.GetOffer(ctx, svc.DB, offer.ID, "u1")
	if o.Status != domain.OfferExpired {
		t.Fatalf("offer status = %q", o.Status)
	}
	other, _ := svc.Get(ctx, "u1", pending.ID)
	if other.Status != domain.SessionPreparing {
		t.Fatalf("pending status = %q", other.Status)
	}
	if evs := rec.Events(); len(evs) != 1 || evs[0].Type != events.NegotiationExpired {
		t.Fatalf("events = %+v", evs)
	}

	// A second sweep finds nothing.
	if n, err := svc.ExpireOverdue(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep = %d, %v", n, err)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())

	if err := svc.Delete(ctx, "u2", sess.ID); !errors.Is(err, ErrNegotiationNotFound) {
		t.Fatalf("foreign delete err = %v", err)
	}
	if err := svc.Delete(ctx, "u1", sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, "u1", sess.ID); !errors.Is(err, ErrNegotiationNotFound) {
		t.Fatalf("Get after delete err = %v", err)
	}
}
