// Package services – session preparation
//
// Talking points, scripts, checklist, confidence exercises and practice turns
// are collections owned by a negotiation session. Their writes go through the
// session's versioned mutate path so concurrent edits never interleave, and
// every one of them is refused once the session is closed.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/negotiation"
	"github.com/tbourn/go-negotiation-backend/internal/repo"
)

const (
	maxLabelRunes    = 255
	maxPracticeRunes = 2000
	// practiceHistory is how many recent turns ListPractice returns by default.
	practiceHistory = 50
)

// ScriptInput selects a scenario and supplies the values it may need.
type ScriptInput struct {
	Scenario string              `json:"scenario"`
	Profile  negotiation.Profile `json:"profile"`
	Values   map[string]string   `json:"values,omitempty"`
}

// PracticeResult is one exchange with the practice coach.
type PracticeResult struct {
	UserTurn  *domain.ConversationTurn `json:"user_turn"`
	CoachTurn *domain.ConversationTurn `json:"coach_turn"`
	Topic     string                   `json:"topic,omitempty"`
}

// contentInput gathers what content generation reads from a session.
func contentInput(ctx context.Context, tx *gorm.DB, sess *domain.NegotiationSession, p negotiation.Profile, bench *domain.BenchmarkEntry, extra map[string]string) (negotiation.ContentInput, error) {
	offers, err := repo.ListOffersBySession(ctx, tx, sess.ID)
	if err != nil {
		return negotiation.ContentInput{}, err
	}
	in := negotiation.ContentInput{
		Company:  sess.Company,
		Position: sess.Position,
		Goals:    sess.Goals,
		Profile:  p,
		Bench:    bench,
		Extra:    extra,
	}
	if n := len(offers); n > 0 {
		in.Offer = &offers[n-1]
	}
	return in, nil
}

// openSession loads a session for read-only preparation work and rejects
// closed ones.
func (s *NegotiationService) openSession(ctx context.Context, userID, negID string) (*domain.NegotiationSession, error) {
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
	return sess, nil
}

// GenerateTalkingPoints rebuilds the session's talking points from the
// user's profile, the latest offer and market data.
func (s *NegotiationService) GenerateTalkingPoints(ctx context.Context, userID, negID string, p negotiation.Profile, expected *int64) ([]domain.TalkingPoint, error) {
	ctx, span := s.span(ctx, "GenerateTalkingPoints", userID, negID)
	defer span.End()

	sess, err := s.openSession(ctx, userID, negID)
	if err != nil {
		return nil, err
	}
	bench := s.benchmarkFor(ctx, sessionKey(sess))

	var pts []domain.TalkingPoint
	_, err = s.mutate(ctx, userID, negID, expected, func(tx *gorm.DB, cur *domain.NegotiationSession) error {
		if cur.IsTerminal() {
			return ErrSessionClosed
		}
		in, err := contentInput(ctx, tx, cur, p, bench, nil)
		if err != nil {
			return err
		}
		drafts := negotiation.GenerateTalkingPoints(in)
		pts = make([]domain.TalkingPoint, 0, len(drafts))
		for _, d := range drafts {
			pts = append(pts, domain.TalkingPoint{
				Category:       d.Category,
				Point:          d.Point,
				SupportingData: d.SupportingData,
				Confidence:     d.Confidence,
			})
		}
		return repo.ReplaceTalkingPoints(ctx, tx, cur.ID, pts)
	})
	if err != nil {
		return nil, err
	}
	return pts, nil
}

// GenerateScript renders a scenario script for the session and appends it.
func (s *NegotiationService) GenerateScript(ctx context.Context, userID, negID string, req ScriptInput, expected *int64) (*domain.Script, error) {
	ctx, span := s.span(ctx, "GenerateScript", userID, negID)
	defer span.End()

	kind, err := negotiation.ParseScenario(req.Scenario)
	if err != nil {
		return nil, &ValidationError{Field: "scenario", Msg: err.Error(), Err: err}
	}
	sess, err := s.openSession(ctx, userID, negID)
	if err != nil {
		return nil, err
	}
	bench := s.benchmarkFor(ctx, sessionKey(sess))

	var sc *domain.Script
	_, err = s.mutate(ctx, userID, negID, expected, func(tx *gorm.DB, cur *domain.NegotiationSession) error {
		if cur.IsTerminal() {
			return ErrSessionClosed
		}
		in, err := contentInput(ctx, tx, cur, req.Profile, bench, req.Values)
		if err != nil {
			return err
		}
		draft, err := negotiation.GenerateScript(kind, in, s.Settings)
		if errors.Is(err, negotiation.ErrMissingPlaceholder) {
			return &ValidationError{Field: "values", Msg: err.Error(), Err: err}
		}
		if err != nil {
			return err
		}
		sc = &domain.Script{
			NegotiationID:        cur.ID,
			Scenario:             string(draft.Scenario),
			Opening:              draft.Opening,
			KeyPoints:            draft.KeyPoints,
			ClosingStatement:     draft.ClosingStatement,
			AlternativeResponses: draft.AlternativeResponses,
		}
		return repo.AppendScript(ctx, tx, sc)
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// ScriptForJob generates a script for the user's latest session on jobID.
func (s *NegotiationService) ScriptForJob(ctx context.Context, userID, jobID string, req ScriptInput) (*domain.Script, error) {
	sess, err := s.sessionForJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return s.GenerateScript(ctx, userID, sess.ID, req, nil)
}

// ExercisesForJob lists the confidence exercises of the user's latest
// session on jobID.
func (s *NegotiationService) ExercisesForJob(ctx context.Context, userID, jobID string) ([]domain.ConfidenceExercise, error) {
	ctx, span := s.span(ctx, "ExercisesForJob", userID, "")
	defer span.End()

	sess, err := s.sessionForJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return repo.ListExercises(ctx, s.DB, sess.ID)
}

func (s *NegotiationService) sessionForJob(ctx context.Context, userID, jobID string) (*domain.NegotiationSession, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, invalid("job_id", "is required")
	}
	sess, err := repo.GetSessionByJob(ctx, s.DB, userID, jobID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNegotiationNotFound
	}
	return sess, err
}

// AddChecklistItem appends a custom preparation step.
func (s *NegotiationService) AddChecklistItem(ctx context.Context, userID, negID, category, label string, expected *int64) (*domain.ChecklistItem, error) {
	ctx, span := s.span(ctx, "AddChecklistItem", userID, negID)
	defer span.End()

	category = strings.ToLower(strings.TrimSpace(category))
	if _, ok := checklistCategories[category]; !ok {
		return nil, invalid("category", "must be one of research, preparation, practice, logistics")
	}
	label = normalizeText(label)
	if label == "" {
		return nil, invalid("label", "is required")
	}
	if utf8.RuneCountInString(label) > maxLabelRunes {
		return nil, invalid("label", "must be at most %d characters", maxLabelRunes)
	}

	var it *domain.ChecklistItem
	_, err := s.mutate(ctx, userID, negID, expected, func(tx *gorm.DB, sess *domain.NegotiationSession) error {
		if sess.IsTerminal() {
			return ErrSessionClosed
		}
		it = &domain.ChecklistItem{NegotiationID: sess.ID, Category: category, Label: label}
		return repo.AppendChecklistItem(ctx, tx, it)
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// ToggleChecklistItem sets an item's done flag; a nil done flips it.
func (s *NegotiationService) ToggleChecklistItem(ctx context.Context, userID, negID, itemID string, done *bool, expected *int64) (*domain.ChecklistItem, error) {
	ctx, span := s.span(ctx, "ToggleChecklistItem", userID, negID)
	defer span.End()

	var it *domain.ChecklistItem
	_, err := s.mutate(ctx, userID, negID, expected, func(tx *gorm.DB, sess *domain.NegotiationSession) error {
		if sess.IsTerminal() {
			return ErrSessionClosed
		}
		cur, err := repo.GetChecklistItem(ctx, tx, sess.ID, itemID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		target := !cur.Done
		if done != nil {
			target = *done
		}
		now := s.now()
		if err := repo.SetChecklistItemDone(ctx, tx, sess.ID, itemID, target, now); err != nil {
			return err
		}
		cur.Done = target
		cur.DoneAt = nil
		if target {
			cur.DoneAt = &now
		}
		cur.UpdatedAt = now
		it = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// CompleteExercise marks a confidence exercise completed. Completing it
// again keeps the original completion time.
func (s *NegotiationService) CompleteExercise(ctx context.Context, userID, negID, exerciseID string, expected *int64) (*domain.ConfidenceExercise, error) {
	ctx, span := s.span(ctx, "CompleteExercise", userID, negID)
	defer span.End()

	var ex *domain.ConfidenceExercise
	_, err := s.mutate(ctx, userID, negID, expected, func(tx *gorm.DB, sess *domain.NegotiationSession) error {
		if sess.IsTerminal() {
			return ErrSessionClosed
		}
		cur, err := repo.GetExercise(ctx, tx, sess.ID, exerciseID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		if !cur.Completed {
			now := s.now()
			if err := repo.CompleteExercise(ctx, tx, sess.ID, exerciseID, now); err != nil {
				return err
			}
			cur.Completed = true
			cur.CompletedAt = &now
			cur.UpdatedAt = now
		}
		ex = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// Practice records a user line and the coach's reply.
func (s *NegotiationService) Practice(ctx context.Context, userID, negID, line string, expected *int64) (*PracticeResult, error) {
	ctx, span := s.span(ctx, "Practice", userID, negID)
	defer span.End()

	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(line) > maxPracticeRunes {
		return nil, invalid("message", "must be at most %d characters", maxPracticeRunes)
	}
	reply, topic, score := s.Coach.Reply(line)

	var res PracticeResult
	_, err := s.mutate(ctx, userID, negID, expected, func(tx *gorm.DB, sess *domain.NegotiationSession) error {
		if sess.IsTerminal() {
			return ErrSessionClosed
		}
		u, c, err := repo.CreateConversationTurns(ctx, tx, sess.ID, line, reply, score)
		if err != nil {
			return err
		}
		res = PracticeResult{UserTurn: u, CoachTurn: c, Topic: topic}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListPractice returns the most recent practice turns in order.
func (s *NegotiationService) ListPractice(ctx context.Context, userID, negID string, limit int) ([]domain.ConversationTurn, error) {
	ctx, span := s.span(ctx, "ListPractice", userID, negID)
	defer span.End()

	if _, err := repo.GetSession(ctx, s.DB, negID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNegotiationNotFound
		}
		return nil, err
	}
	if limit <= 0 || limit > practiceHistory {
		limit = practiceHistory
	}
	return repo.ListConversationTurns(ctx, s.DB, negID, limit)
}
