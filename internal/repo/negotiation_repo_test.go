package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

func TestCreateSession_Error_NoTable(t *testing.T) {
	db := newRepoDB(t, false)
	if err := CreateSession(context.Background(), db, newSession("u1", "")); err == nil {
		t.Fatal("expected error creating without table")
	}
}

func TestCreateSession_AssignsIdentityAndSeedsCollections(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()

	s := newSession("u1", "job-1")
	s.ChecklistItems = []domain.ChecklistItem{
		{Category: "research", Label: "Collect market data"},
		{Category: "practice", Label: "Rehearse the opening"},
	}
	s.Exercises = []domain.ConfidenceExercise{{Kind: "power_pose", Title: "Warm up"}}
	if err := CreateSession(ctx, db, s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID == "" || s.Version != 1 || s.Status != domain.SessionPreparing {
		t.Fatalf("unexpected session fields: %+v", s)
	}

	got, err := GetSessionDetail(ctx, db, s.ID, "u1")
	if err != nil {
		t.Fatalf("GetSessionDetail: %v", err)
	}
	if len(got.ChecklistItems) != 2 || got.ChecklistItems[0].Position != 0 || got.ChecklistItems[1].Label != "Rehearse the opening" {
		t.Fatalf("checklist not seeded in order: %+v", got.ChecklistItems)
	}
	if len(got.Exercises) != 1 || got.Exercises[0].NegotiationID != s.ID {
		t.Fatalf("exercises not seeded: %+v", got.Exercises)
	}
}

func TestGetSession_ScopedByUser(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()
	s := newSession("u1", "")
	if err := CreateSession(ctx, db, s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := GetSession(ctx, db, s.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
	if got, err := GetSession(ctx, db, s.ID, "u1"); err != nil || got.Company != "Acme" {
		t.Fatalf("GetSession: got=%+v err=%v", got, err)
	}
}

func TestListSessionsPage_AndCount_FilterByStatus(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s := newSession("u1", "")
		if i == 2 {
			s.Status = domain.SessionInNegotiation
		}
		if err := CreateSession(ctx, db, s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if err := CreateSession(ctx, db, newSession("u2", "")); err != nil {
		t.Fatalf("CreateSession other user: %v", err)
	}

	total, err := CountSessions(ctx, db, "u1", "")
	if err != nil || total != 3 {
		t.Fatalf("CountSessions = %d, %v; want 3", total, err)
	}
	open, err := CountSessions(ctx, db, "u1", domain.SessionInNegotiation)
	if err != nil || open != 1 {
		t.Fatalf("CountSessions(InNegotiation) = %d, %v; want 1", open, err)
	}

	page, err := ListSessionsPage(ctx, db, "u1", "", 0, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("ListSessionsPage: len=%d err=%v", len(page), err)
	}
	if !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Fatalf("expected newest first: %v then %v", page[0].CreatedAt, page[1].CreatedAt)
	}
	if page[0].Status != domain.SessionInNegotiation {
		t.Fatalf("expected the newest (in negotiation) session first, got %s", page[0].Status)
	}
}

func TestUpdateSessionCAS_BumpsVersion_AndRejectsStale(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()
	s := newSession("u1", "")
	if err := CreateSession(ctx, db, s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	s.Goals.TargetSalary = 130000
	if err := UpdateSessionCAS(ctx, db, s, 1); err != nil {
		t.Fatalf("UpdateSessionCAS: %v", err)
	}
	if s.Version != 2 {
		t.Fatalf("Version = %d; want 2", s.Version)
	}

	stale := *s
	stale.Goals.TargetSalary = 999999
	if err := UpdateSessionCAS(ctx, db, &stale, 1); !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}

	got, _ := GetSession(ctx, db, s.ID, "u1")
	if got.Goals.TargetSalary != 130000 || got.Version != 2 {
		t.Fatalf("stale write leaked: %+v", got)
	}
}

func TestDeleteSession_SoftDeletes(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()
	s := newSession("u1", "")
	if err := CreateSession(ctx, db, s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := DeleteSession(ctx, db, s.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting other user's session, got %v", err)
	}
	if err := DeleteSession(ctx, db, s.ID, "u1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := GetSession(ctx, db, s.ID, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted session to be hidden, got %v", err)
	}
	var n int64
	db.Unscoped().Model(&domain.NegotiationSession{}).Where("id = ?", s.ID).Count(&n)
	if n != 1 {
		t.Fatalf("expected row to remain for soft delete, got %d", n)
	}
}

func TestGetSessionByJob_ReturnsLatest(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()
	first := newSession("u1", "job-7")
	if err := CreateSession(ctx, db, first); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second := newSession("u1", "job-7")
	if err := CreateSession(ctx, db, second); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	got, err := GetSessionByJob(ctx, db, "u1", "job-7")
	if err != nil || got.ID != second.ID {
		t.Fatalf("GetSessionByJob = %v, %v; want %s", got, err, second.ID)
	}
	if _, err := GetSessionByJob(ctx, db, "u1", "job-unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOverdueSessions_OnlyOpenPastDeadline(t *testing.T) {
	db := newRepoDB(t, true)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	overdue := newSession("u1", "")
	overdue.DeadlineDate = &past
	notYet := newSession("u1", "")
	notYet.DeadlineDate = &future
	closed := newSession("u1", "")
	closed.DeadlineDate = &past
	closed.Status = domain.SessionAccepted
	noDeadline := newSession("u1", "")

	for _, s := range []*domain.NegotiationSession{overdue, notYet, closed, noDeadline} {
		if err := CreateSession(ctx, db, s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}
	got, err := ListOverdueSessions(ctx, db, now, 10)
	if err != nil {
		t.Fatalf("ListOverdueSessions: %v", err)
	}
	if len(got) != 1 || got[0].ID != overdue.ID {
		t.Fatalf("expected only the overdue open session, got %+v", got)
	}
}
