package domain

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OfferType tells where an offer sits in a negotiation round.
type OfferType string

const (
	OfferInitial OfferType = "Initial"
	OfferCounter OfferType = "Counter"
	OfferFinal   OfferType = "Final"
)

// ParseOfferType validates a raw offer type.
func ParseOfferType(s string) (OfferType, error) {
	switch t := OfferType(s); t {
	case OfferInitial, OfferCounter, OfferFinal:
		return t, nil
	}
	return "", fmt.Errorf("unknown offer type %q", s)
}

// OfferStatus is the lifecycle status of a single offer in the ledger.
type OfferStatus string

const (
	OfferActive   OfferStatus = "Active"
	OfferAccepted OfferStatus = "Accepted"
	OfferDeclined OfferStatus = "Declined"
	OfferExpired  OfferStatus = "Expired"
)

// ParseOfferStatus validates a raw offer status.
func ParseOfferStatus(s string) (OfferStatus, error) {
	switch st := OfferStatus(s); st {
	case OfferActive, OfferAccepted, OfferDeclined, OfferExpired:
		return st, nil
	}
	return "", fmt.Errorf("unknown offer status %q", s)
}

// Offer is one entry of a user's offer ledger. Offers are either tracked
// against a job directly or attached to a negotiation session. The ledger is
// append-only: once written, only Status may change.
//
// TotalCompensation is derived; callers must go through RecomputeTotal before
// persisting or analysing an offer.
type Offer struct {
	ID            string  `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID        string  `json:"user_id"        gorm:"type:varchar(64);not null;index:idx_user_offers,priority:1"`
	NegotiationID *string `json:"negotiation_id,omitempty" gorm:"type:char(36);index"`
	JobID         string  `json:"job_id"         gorm:"type:varchar(64);not null;default:'';index"`
	Company       string  `json:"company"        gorm:"type:varchar(255);not null"`
	Position      string  `json:"position"       gorm:"type:varchar(255);not null"`

	Type   OfferType   `json:"type"   gorm:"type:varchar(16);not null;check:type IN ('Initial','Counter','Final')"`
	Status OfferStatus `json:"status" gorm:"type:varchar(16);not null;check:status IN ('Active','Accepted','Declined','Expired')"`

	BaseSalary        float64 `json:"base_salary"`
	SigningBonus      float64 `json:"signing_bonus"`
	PerformanceBonus  float64 `json:"performance_bonus"`
	EquityValue       float64 `json:"equity_value"`
	BenefitsValue     float64 `json:"benefits_value"`
	TotalCompensation float64 `json:"total_compensation"`

	PTODays           int `json:"pto_days"`
	RemoteDaysPerWeek int `json:"remote_days_per_week"`

	WasNegotiated      bool     `json:"was_negotiated"`
	InitialOfferAmount *float64 `json:"initial_offer_amount,omitempty"`
	FinalOfferAmount   *float64 `json:"final_offer_amount,omitempty"`
	NegotiationRounds  int      `json:"negotiation_rounds"`

	ReceivedDate time.Time  `json:"received_date" gorm:"index:idx_user_offers,priority:2"`
	DeadlineDate *time.Time `json:"deadline_date,omitempty"`
	Notes        string     `json:"notes,omitempty" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Offer.
func (Offer) TableName() string { return "offers" }

// ComputeTotal returns base + signing + performance bonus + annualized equity.
// Benefits are valued separately and are not part of total compensation.
func (o Offer) ComputeTotal() float64 {
	return SumAmounts(o.BaseSalary, o.SigningBonus, o.PerformanceBonus, o.EquityValue)
}

// RecomputeTotal overwrites TotalCompensation with the sum of its components,
// discarding whatever value was supplied.
func (o *Offer) RecomputeTotal() {
	o.TotalCompensation = o.ComputeTotal()
}

// Increase returns the fractional increase from the initial to the final
// offer amount. ok is false when the offer was not negotiated or either
// amount is missing or the initial amount is not positive.
func (o Offer) Increase() (frac float64, ok bool) {
	if !o.WasNegotiated || o.InitialOfferAmount == nil || o.FinalOfferAmount == nil {
		return 0, false
	}
	if *o.InitialOfferAmount <= 0 {
		return 0, false
	}
	return (*o.FinalOfferAmount - *o.InitialOfferAmount) / *o.InitialOfferAmount, true
}
