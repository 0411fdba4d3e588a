// Package services – input validation
//
// This file holds the request shapes shared by NegotiationService and
// OfferService and the checks applied to them before any computation.
// Numeric fields must be finite and non-negative; nothing is coerced.
package services

import (
	"math"
	"strings"
	"time"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// maxRemoteDays caps remote_days_per_week.
const maxRemoteDays = 7

// SessionInput is the editable part of a negotiation session.
type SessionInput struct {
	Company         string                  `json:"company"`
	Position        string                  `json:"position"`
	Industry        string                  `json:"industry"`
	ExperienceLevel string                  `json:"experience_level"`
	Location        string                  `json:"location"`
	CompanySize     string                  `json:"company_size"`
	JobID           string                  `json:"job_id"`
	Goals           domain.NegotiationGoals `json:"goals"`
	DeadlineDate    *time.Time              `json:"deadline_date,omitempty"`
}

// OfferInput describes an offer to append to the ledger. Status is required
// so past decisions can be recorded as they happened. Total compensation is
// never accepted from callers.
type OfferInput struct {
	Company            string     `json:"company"`
	Position           string     `json:"position"`
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	BaseSalary         float64    `json:"base_salary"`
	SigningBonus       float64    `json:"signing_bonus"`
	PerformanceBonus   float64    `json:"performance_bonus"`
	EquityValue        float64    `json:"equity_value"`
	BenefitsValue      float64    `json:"benefits_value"`
	PTODays            int        `json:"pto_days"`
	RemoteDaysPerWeek  int        `json:"remote_days_per_week"`
	ReceivedDate       *time.Time `json:"received_date,omitempty"`
	DeadlineDate       *time.Time `json:"deadline_date,omitempty"`
	WasNegotiated      bool       `json:"was_negotiated"`
	InitialOfferAmount *float64   `json:"initial_offer_amount,omitempty"`
	FinalOfferAmount   *float64   `json:"final_offer_amount,omitempty"`
	NegotiationRounds  int        `json:"negotiation_rounds"`
	Notes              string     `json:"notes,omitempty"`
}

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, "must be a finite number")
	}
	if v < 0 {
		return invalid(field, "must not be negative")
	}
	return nil
}

func checkGoals(g domain.NegotiationGoals) error {
	if err := checkAmount("goals.minimum_acceptable", g.MinimumAcceptable); err != nil {
		return err
	}
	if err := checkAmount("goals.target_salary", g.TargetSalary); err != nil {
		return err
	}
	if g.TargetSalary <= 0 {
		return invalid("goals.target_salary", "must be greater than zero")
	}
	if g.IdealSalary != nil {
		if err := checkAmount("goals.ideal_salary", *g.IdealSalary); err != nil {
			return err
		}
	}
	if v := g.OrderingViolations(); len(v) > 0 {
		return invalid("goals", "%s", strings.Join(v, "; "))
	}
	return nil
}

func normalizeSession(in SessionInput) (SessionInput, error) {
	in.Company = normalizeText(in.Company)
	in.Position = normalizeText(in.Position)
	in.Industry = normalizeText(in.Industry)
	in.ExperienceLevel = normalizeText(in.ExperienceLevel)
	in.Location = normalizeText(in.Location)
	in.CompanySize = normalizeText(in.CompanySize)
	in.JobID = strings.TrimSpace(in.JobID)
	if in.Company == "" {
		return in, invalid("company", "is required")
	}
	if in.Position == "" {
		return in, invalid("position", "is required")
	}
	return in, checkGoals(in.Goals)
}

// buildOffer validates in and returns an offer owned by userID.
func buildOffer(userID string, in OfferInput) (*domain.Offer, error) {
	t, err := domain.ParseOfferType(strings.TrimSpace(in.Type))
	if err != nil {
		return nil, invalid("type", "must be one of Initial, Counter, Final")
	}
	rawStatus := strings.TrimSpace(in.Status)
	if rawStatus == "" {
		return nil, invalid("status", "is required")
	}
	st, err := domain.ParseOfferStatus(rawStatus)
	if err != nil {
		return nil, invalid("status", "must be one of Active, Accepted, Declined, Expired")
	}
	amounts := []struct {
		field string
		v     float64
	}{
		{"base_salary", in.BaseSalary},
		{"signing_bonus", in.SigningBonus},
		{"performance_bonus", in.PerformanceBonus},
		{"equity_value", in.EquityValue},
		{"benefits_value", in.BenefitsValue},
	}
	for _, a := range amounts {
		if err := checkAmount(a.field, a.v); err != nil {
			return nil, err
		}
	}
	if in.BaseSalary <= 0 {
		return nil, invalid("base_salary", "must be greater than zero")
	}
	if in.InitialOfferAmount != nil {
		if err := checkAmount("initial_offer_amount", *in.InitialOfferAmount); err != nil {
			return nil, err
		}
	}
	if in.FinalOfferAmount != nil {
		if err := checkAmount("final_offer_amount", *in.FinalOfferAmount); err != nil {
			return nil, err
		}
	}
	if in.PTODays < 0 || in.PTODays > 365 {
		return nil, invalid("pto_days", "must be between 0 and 365")
	}
	if in.RemoteDaysPerWeek < 0 || in.RemoteDaysPerWeek > maxRemoteDays {
		return nil, invalid("remote_days_per_week", "must be between 0 and %d", maxRemoteDays)
	}
	if in.NegotiationRounds < 0 {
		return nil, invalid("negotiation_rounds", "must not be negative")
	}

	o := &domain.Offer{
		UserID:             userID,
		Company:            normalizeText(in.Company),
		Position:           normalizeText(in.Position),
		Type:               t,
		Status:             st,
		BaseSalary:         in.BaseSalary,
		SigningBonus:       in.SigningBonus,
		PerformanceBonus:   in.PerformanceBonus,
		EquityValue:        in.EquityValue,
		BenefitsValue:      in.BenefitsValue,
		PTODays:            in.PTODays,
		RemoteDaysPerWeek:  in.RemoteDaysPerWeek,
		DeadlineDate:       in.DeadlineDate,
		WasNegotiated:      in.WasNegotiated,
		InitialOfferAmount: in.InitialOfferAmount,
		FinalOfferAmount:   in.FinalOfferAmount,
		NegotiationRounds:  in.NegotiationRounds,
		Notes:              strings.TrimSpace(in.Notes),
	}
	if in.ReceivedDate != nil {
		o.ReceivedDate = in.ReceivedDate.UTC()
	}
	if o.DeadlineDate != nil && !o.ReceivedDate.IsZero() && o.DeadlineDate.Before(o.ReceivedDate) {
		return nil, invalid("deadline_date", "must not be before received_date")
	}
	o.RecomputeTotal()
	return o, nil
}

// normalizeText trims whitespace and collapses internal runs to one space.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
