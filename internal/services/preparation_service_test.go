package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
)

func profile() negotiation.Profile {
	return negotiation.Profile{
		Skills:          []string{"Go", "Kubernetes"},
		Achievements:    []string{"Cut p99 latency by 40% across the Go services", "Led a team of 5"},
		Certifications:  []string{"CKA"},
		YearsExperience: 8,
	}
}

func TestGenerateTalkingPoints_ReplacesPreviousSet(t *testing.T) {
	svc, _ := newTestNegotiationService(t, &fakeBench{entry: techSenior()})
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())
	_, _, _ = svc.AddOffer(ctx, "u1", sess.ID, sampleOffer("Initial", 130000), "", nil)

	first, err := svc.GenerateTalkingPoints(ctx, "u1", sess.ID, profile(), nil)
	if err != nil {
		t.Fatalf("GenerateTalkingPoints: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("expected talking points")
	}
	second, err := svc.GenerateTalkingPoints(ctx, "u1", sess.ID, profile(), nil)
	if err != nil {
		t.Fatalf("second GenerateTalkingPoints: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("regeneration changed composition: %d vs %d", len(second), len(first))
	}
	for i := range first {
		if first[i].Point != second[i].Point || first[i].Confidence != second[i].Confidence {
			t.Fatalf("point %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}

	got, _ := svc.Get(ctx, "u1", sess.ID)
	if len(got.TalkingPoints) != len(second) {
		t.Fatalf("stored %d points; want %d", len(got.TalkingPoints), len(second))
	}
	for i, tp := range got.TalkingPoints {
		if tp.Position != i {
			t.Fatalf("point %d has position %d", i, tp.Position)
		}
	}
}

func TestGenerateTalkingPoints_ClosedSession(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())
	if _, err := svc.Complete(ctx, "u1", sess.ID, CompleteInput{Outcome: "Withdrawn"}, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if _, err := svc.GenerateTalkingPoints(ctx, "u1", sess.ID, profile(), nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("err = %v; want ErrSessionClosed", err)
	}
	if _, err := svc.GenerateScript(ctx, "u1", sess.ID, ScriptInput{Scenario: "Custom"}, nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("script err = %v; want ErrSessionClosed", err)
	}
	// Reads still work.
	if _, err := svc.Get(ctx, "u1", sess.ID); err != nil {
		t.Fatalf("Get closed session: %v", err)
	}
}

func TestGenerateScript(t *testing.T) {
	svc, _ := newTestNegotiationService(t, &fakeBench{entry: techSenior()})
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())
	_, _, _ = svc.AddOffer(ctx, "u1", sess.ID, sampleOffer("Initial", 130000), "", nil)

	sc, err := svc.GenerateScript(ctx, "u1", sess.ID, ScriptInput{Scenario: "Initial Offer Too Low", Profile: profile()}, nil)
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if sc.Position != 0 || !strings.Contains(sc.Opening, "Acme") || len(sc.KeyPoints) == 0 {
		t.Fatalf("script = %+v", sc)
	}

	multi, err := svc.GenerateScript(ctx, "u1", sess.ID, ScriptInput{
		Scenario: "Multiple Offers",
		Values:   map[string]string{"competing_offer": "$170,000"},
	}, nil)
	if err != nil {
		t.Fatalf("GenerateScript multiple: %v", err)
	}
	if multi.Position != 1 || !strings.Contains(multi.Opening, "$170,000") {
		t.Fatalf("multiple offers script = %+v", multi)
	}
}

func TestGenerateScript_ValidationErrors(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())

	_, err := svc.GenerateScript(ctx, "u1", sess.ID, ScriptInput{Scenario: "Haggle"}, nil)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "scenario" || !errors.Is(err, negotiation.ErrUnknownScenario) {
		t.Fatalf("unknown scenario err = %v", err)
	}

	_, err = svc.GenerateScript(ctx, "u1", sess.ID, ScriptInput{Scenario: "Multiple Offers"}, nil)
	if !errors.As(err, &ve) || ve.Field != "values" || !errors.Is(err, negotiation.ErrMissingPlaceholder) {
		t.Fatalf("missing placeholder err = %v", err)
	}

	got, _ := svc.Get(ctx, "u1", sess.ID)
	if len(got.Scripts) != 0 {
		t.Fatalf("failed generation stored %d scripts", len(got.Scripts))
	}
}

func TestChecklist_AddAndToggle(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())

	_, err := svc.AddChecklistItem(ctx, "u1", sess.ID, "shopping", "Buy a suit", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "category" {
		t.Fatalf("bad category err = %v", err)
	}
	if _, err := svc.AddChecklistItem(ctx, "u1", sess.ID, "logistics", "   ", nil); !errors.As(err, &ve) || ve.Field != "label" {
		t.Fatalf("blank label err = %v", err)
	}

	it, err := svc.AddChecklistItem(ctx, "u1", sess.ID, " Logistics ", "Book a quiet room for the call", nil)
	if err != nil {
		t.Fatalf("AddChecklistItem: %v", err)
	}
	if it.Category != ChecklistLogistics || it.Position != len(defaultChecklist()) {
		t.Fatalf("item = %+v", it)
	}

	flipped, err := svc.ToggleChecklistItem(ctx, "u1", sess.ID, it.ID, nil, nil)
	if err != nil || !flipped.Done || flipped.DoneAt == nil {
		t.Fatalf("toggle = %+v, %v", flipped, err)
	}
	off := false
	cleared, err := svc.ToggleChecklistItem(ctx, "u1", sess.ID, it.ID, &off, nil)
	if err != nil || cleared.Done || cleared.DoneAt != nil {
		t.Fatalf("explicit false = %+v, %v", cleared, err)
	}

	if _, err := svc.ToggleChecklistItem(ctx, "u1", sess.ID, "missing", nil, nil); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("missing item err = %v", err)
	}

	got, _ := svc.Get(ctx, "u1", sess.ID)
	if got.Version != 4 {
		t.Fatalf("version = %d; want 4 after three writes", got.Version)
	}
}

func TestCompleteExercise_KeepsFirstCompletion(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())
	got, _ := svc.Get(ctx, "u1", sess.ID)
	exID := got.Exercises[0].ID

	ex, err := svc.CompleteExercise(ctx, "u1", sess.ID, exID, nil)
	if err != nil || !ex.Completed || ex.CompletedAt == nil || !ex.CompletedAt.Equal(fixedNow) {
		t.Fatalf("CompleteExercise = %+v, %v", ex, err)
	}

	svc.Now = func() time.Time { return fixedNow.Add(time.Hour) }
	again, err := svc.CompleteExercise(ctx, "u1", sess.ID, exID, nil)
	if err != nil || !again.CompletedAt.Equal(fixedNow) {
		t.Fatalf("second completion = %+v, %v", again, err)
	}

	if _, err := svc.CompleteExercise(ctx, "u1", sess.ID, "missing", nil); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("missing exercise err = %v", err)
	}
}

func TestPractice(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	sess, _ := svc.Create(ctx, "u1", sampleSession())

	if _, err := svc.Practice(ctx, "u1", sess.ID, "   ", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("empty line err = %v", err)
	}

	res, err := svc.Practice(ctx, "u1", sess.ID, "How big a signing bonus should I request to bridge the gap?", nil)
	if err != nil {
		t.Fatalf("Practice: %v", err)
	}
	if res.UserTurn.Role != "user" || res.CoachTurn.Role != "coach" || res.CoachTurn.Content == "" {
		t.Fatalf("turns = %+v / %+v", res.UserTurn, res.CoachTurn)
	}
	if res.Topic != "Signing bonus" {
		t.Fatalf("topic = %q", res.Topic)
	}

	turns, err := svc.ListPractice(ctx, "u1", sess.ID, 0)
	if err != nil || len(turns) != 2 || turns[0].Role != "user" {
		t.Fatalf("ListPractice = %+v, %v", turns, err)
	}
	if _, err := svc.ListPractice(ctx, "u2", sess.ID, 0); !errors.Is(err, ErrNegotiationNotFound) {
		t.Fatalf("foreign ListPractice err = %v", err)
	}
}

func TestJobScopedHelpers(t *testing.T) {
	svc, _ := newTestNegotiationService(t, nil)
	ctx := context.Background()
	_, _ = svc.Create(ctx, "u1", sampleSession())

	exs, err := svc.ExercisesForJob(ctx, "u1", "job-1")
	if err != nil || len(exs) != len(defaultExercises()) {
		t.Fatalf("ExercisesForJob = %d, %v", len(exs), err)
	}
	if _, err := svc.ExercisesForJob(ctx, "u1", "job-404"); !errors.Is(err, ErrNegotiationNotFound) {
		t.Fatalf("unknown job err = %v", err)
	}

	sc, err := svc.ScriptForJob(ctx, "u1", "job-1", ScriptInput{Scenario: "Benefits Negotiation"})
	if err != nil || sc.Scenario != "Benefits Negotiation" {
		t.Fatalf("ScriptForJob = %+v, %v", sc, err)
	}
}
