// Package domain defines the persistence models of the negotiation engine:
// negotiation sessions and their owned collections, the offer ledger,
// benchmark records and idempotency records. The types are mapped with GORM
// and shared by the repository, service and HTTP layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of a negotiation session.
type SessionStatus string

const (
	SessionPreparing     SessionStatus = "Preparing"
	SessionInNegotiation SessionStatus = "In Negotiation"
	SessionAccepted      SessionStatus = "Accepted"
	SessionDeclined      SessionStatus = "Declined"
	SessionWithdrawn     SessionStatus = "Withdrawn"
	SessionExpired       SessionStatus = "Expired"
)

// NegotiationGoals is the minimum/target/ideal triple a user negotiates
// against. IdealSalary is optional.
type NegotiationGoals struct {
	MinimumAcceptable float64  `json:"minimum_acceptable"`
	TargetSalary      float64  `json:"target_salary"`
	IdealSalary       *float64 `json:"ideal_salary,omitempty"`
}

// OrderingViolations lists every broken link of min <= target <= ideal.
// An empty result means the goals are well ordered.
func (g NegotiationGoals) OrderingViolations() []string {
	var out []string
	if g.MinimumAcceptable > g.TargetSalary {
		out = append(out, "minimum_acceptable exceeds target_salary")
	}
	if g.IdealSalary != nil && g.TargetSalary > *g.IdealSalary {
		out = append(out, "target_salary exceeds ideal_salary")
	}
	return out
}

// NegotiationSession is the unit of work for one job opportunity. Its owned
// collections are stored as separate rows with their own ids and an explicit
// Position column; Version guards read-modify-write mutations.
type NegotiationSession struct {
	ID     string `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID string `json:"user_id" gorm:"type:varchar(64);not null;index:idx_user_negotiations,priority:1"`
	JobID  string `json:"job_id"  gorm:"type:varchar(64);not null;default:'';index"`

	Company         string `json:"company"          gorm:"type:varchar(255);not null"`
	Position        string `json:"position"         gorm:"type:varchar(255);not null"`
	Industry        string `json:"industry"         gorm:"type:varchar(128)"`
	ExperienceLevel string `json:"experience_level" gorm:"type:varchar(64)"`
	Location        string `json:"location"         gorm:"type:varchar(128)"`
	CompanySize     string `json:"company_size"     gorm:"type:varchar(64)"`

	Goals NegotiationGoals `json:"goals" gorm:"embedded"`

	Status       SessionStatus `json:"status"  gorm:"type:varchar(32);not null;index"`
	DeadlineDate *time.Time    `json:"deadline_date,omitempty" gorm:"index"`
	Outcome      string        `json:"outcome,omitempty" gorm:"type:text"`
	FinalSalary  *float64      `json:"final_salary,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Version      int64         `json:"version" gorm:"not null;default:1"`

	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_user_negotiations,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Offers            []Offer              `json:"offers,omitempty"             gorm:"foreignKey:NegotiationID"`
	Counteroffers     []Counteroffer       `json:"counteroffers,omitempty"      gorm:"foreignKey:NegotiationID;constraint:OnDelete:CASCADE"`
	TalkingPoints     []TalkingPoint       `json:"talking_points,omitempty"     gorm:"foreignKey:NegotiationID;constraint:OnDelete:CASCADE"`
	Scripts           []Script             `json:"scripts,omitempty"            gorm:"foreignKey:NegotiationID;constraint:OnDelete:CASCADE"`
	ChecklistItems    []ChecklistItem      `json:"checklist_items,omitempty"    gorm:"foreignKey:NegotiationID;constraint:OnDelete:CASCADE"`
	Exercises         []ConfidenceExercise `json:"exercises,omitempty"          gorm:"foreignKey:NegotiationID;constraint:OnDelete:CASCADE"`
	ConversationTurns []ConversationTurn   `json:"conversation_turns,omitempty" gorm:"foreignKey:NegotiationID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for NegotiationSession.
func (NegotiationSession) TableName() string { return "negotiation_sessions" }

// IsTerminal reports whether the session has reached a final outcome.
func (s NegotiationSession) IsTerminal() bool {
	switch s.Status {
	case SessionAccepted, SessionDeclined, SessionWithdrawn, SessionExpired:
		return true
	}
	return false
}

// CounterSuggestion is one proposed change to an offer component.
type CounterSuggestion struct {
	Type          string  `json:"type"`
	Current       float64 `json:"current"`
	Proposed      float64 `json:"proposed"`
	Unit          string  `json:"unit"`
	Justification string  `json:"justification"`
}

// Counteroffer records an evaluation verdict for an offer in a session.
type Counteroffer struct {
	ID                   string                                 `json:"id"             gorm:"type:char(36);primaryKey"`
	NegotiationID        string                                 `json:"negotiation_id" gorm:"type:char(36);not null;index"`
	OfferID              *string                                `json:"offer_id,omitempty" gorm:"type:char(36)"`
	OfferTotal           float64                                `json:"offer_total"`
	Recommendation       string                                 `json:"recommendation" gorm:"type:varchar(32);not null"`
	Reasoning            string                                 `json:"reasoning"      gorm:"type:text"`
	MeetsMinimum         bool                                   `json:"meets_minimum"`
	MeetsTarget          bool                                   `json:"meets_target"`
	MeetsIdeal           bool                                   `json:"meets_ideal"`
	BenchmarkUnavailable bool                                   `json:"benchmark_unavailable"`
	Suggestions          datatypes.JSONSlice[CounterSuggestion] `json:"suggestions"`
	CreatedAt            time.Time                              `json:"created_at"`
}

// TableName returns the database table name for Counteroffer.
func (Counteroffer) TableName() string { return "counteroffers" }

// TalkingPoint is a single argument the user can bring to the table.
type TalkingPoint struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	NegotiationID  string    `json:"negotiation_id"  gorm:"type:char(36);not null;index:idx_tp_order,priority:1"`
	Category       string    `json:"category"        gorm:"type:varchar(32);not null"`
	Point          string    `json:"point"           gorm:"type:text;not null"`
	SupportingData string    `json:"supporting_data" gorm:"type:text"`
	Confidence     string    `json:"confidence"      gorm:"type:varchar(8);not null;check:confidence IN ('high','medium','low')"`
	Position       int       `json:"position"        gorm:"not null;index:idx_tp_order,priority:2"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for TalkingPoint.
func (TalkingPoint) TableName() string { return "talking_points" }

// Script is a filled scenario script.
type Script struct {
	ID                   string                    `json:"id"             gorm:"type:char(36);primaryKey"`
	NegotiationID        string                    `json:"negotiation_id" gorm:"type:char(36);not null;index:idx_script_order,priority:1"`
	Scenario             string                    `json:"scenario"       gorm:"type:varchar(64);not null"`
	Opening              string                    `json:"opening"        gorm:"type:text"`
	KeyPoints            datatypes.JSONSlice[string] `json:"key_points"`
	ClosingStatement     string                    `json:"closing_statement" gorm:"type:text"`
	AlternativeResponses datatypes.JSONSlice[string] `json:"alternative_responses"`
	Position             int                       `json:"position" gorm:"not null;index:idx_script_order,priority:2"`
	CreatedAt            time.Time                 `json:"created_at"`
}

// TableName returns the database table name for Script.
func (Script) TableName() string { return "scripts" }

// ChecklistItem is a category-tagged preparation step.
type ChecklistItem struct {
	ID            string     `json:"id"             gorm:"type:char(36);primaryKey"`
	NegotiationID string     `json:"negotiation_id" gorm:"type:char(36);not null;index:idx_checklist_order,priority:1"`
	Category      string     `json:"category"       gorm:"type:varchar(32);not null"`
	Label         string     `json:"label"          gorm:"type:varchar(255);not null"`
	Done          bool       `json:"done"`
	DoneAt        *time.Time `json:"done_at,omitempty"`
	Position      int        `json:"position" gorm:"not null;index:idx_checklist_order,priority:2"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ChecklistItem.
func (ChecklistItem) TableName() string { return "checklist_items" }

// ConfidenceExercise is a rehearsal task that helps the user prepare.
type ConfidenceExercise struct {
	ID            string     `json:"id"             gorm:"type:char(36);primaryKey"`
	NegotiationID string     `json:"negotiation_id" gorm:"type:char(36);not null;index:idx_exercise_order,priority:1"`
	Kind          string     `json:"kind"           gorm:"type:varchar(32);not null"`
	Title         string     `json:"title"          gorm:"type:varchar(255);not null"`
	Instructions  string     `json:"instructions"   gorm:"type:text"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Position      int        `json:"position" gorm:"not null;index:idx_exercise_order,priority:2"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ConfidenceExercise.
func (ConfidenceExercise) TableName() string { return "confidence_exercises" }

// ConversationTurn is one line of a practice conversation, authored either by
// the user or by the coach.
type ConversationTurn struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	NegotiationID string    `json:"negotiation_id" gorm:"type:char(36);not null;index:idx_turn_order,priority:1"`
	Role          string    `json:"role"           gorm:"type:varchar(16);not null;check:role IN ('user','coach')"`
	Content       string    `json:"content"        gorm:"type:text;not null"`
	Score         *float64  `json:"score,omitempty"`
	CreatedAt     time.Time `json:"created_at"     gorm:"index:idx_turn_order,priority:2"`
}

// TableName returns the database table name for ConversationTurn.
func (ConversationTurn) TableName() string { return "conversation_turns" }
