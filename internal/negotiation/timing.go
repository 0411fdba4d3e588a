package negotiation

import (
	"time"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// Urgency levels of a timing strategy.
const (
	UrgencyLow     = "low"
	UrgencyMedium  = "medium"
	UrgencyHigh    = "high"
	UrgencyExpired = "expired"
)

const (
	respondMin      = 24 * time.Hour
	respondMax      = 48 * time.Hour
	counterLead     = 48 * time.Hour
	defaultDecision = 7 * 24 * time.Hour
)

// TimingStrategy tells the user when to respond and counter.
type TimingStrategy struct {
	OfferID        string     `json:"offer_id"`
	ReceivedDate   time.Time  `json:"received_date"`
	DeadlineDate   *time.Time `json:"deadline_date,omitempty"`
	RespondAfter   time.Time  `json:"respond_after"`
	RespondBy      time.Time  `json:"respond_by"`
	CounterBy      time.Time  `json:"counter_by"`
	HoursRemaining float64    `json:"hours_remaining"`
	Urgency        string     `json:"urgency"`
	Advice         []string   `json:"advice"`
}

// PlanTiming derives a timing strategy for offer at now. Without a deadline a
// seven-day decision window from the received date is assumed.
func PlanTiming(offer domain.Offer, now time.Time) TimingStrategy {
	deadline := offer.ReceivedDate.Add(defaultDecision)
	if offer.DeadlineDate != nil {
		deadline = *offer.DeadlineDate
	}
	ts := TimingStrategy{
		OfferID:      offer.ID,
		ReceivedDate: offer.ReceivedDate,
		DeadlineDate: offer.DeadlineDate,
		RespondAfter: offer.ReceivedDate.Add(respondMin),
		RespondBy:    offer.ReceivedDate.Add(respondMax),
		CounterBy:    deadline.Add(-counterLead),
	}
	if ts.RespondBy.After(deadline) {
		ts.RespondBy = deadline
	}
	if ts.RespondAfter.After(ts.RespondBy) {
		ts.RespondAfter = offer.ReceivedDate
	}
	if ts.CounterBy.Before(ts.RespondAfter) {
		ts.CounterBy = ts.RespondAfter
	}
	if ts.CounterBy.After(deadline) {
		ts.CounterBy = deadline
	}

	remaining := deadline.Sub(now)
	ts.HoursRemaining = round1(max(remaining.Hours(), 0))
	switch {
	case remaining <= 0:
		ts.Urgency = UrgencyExpired
		ts.Advice = []string{"The decision deadline has passed; ask the recruiter whether the offer still stands."}
	case remaining <= 48*time.Hour:
		ts.Urgency = UrgencyHigh
		ts.Advice = []string{
			"Send your counter today.",
			"If you need more time, ask for a short extension in writing.",
		}
	case remaining <= 5*24*time.Hour:
		ts.Urgency = UrgencyMedium
		ts.Advice = []string{
			"Acknowledge the offer and confirm your timeline.",
			"Finish your research and send the counter before the counter-by date.",
		}
	default:
		ts.Urgency = UrgencyLow
		ts.Advice = []string{
			"Thank the recruiter and say when you will respond.",
			"Use the time to practice your counter and gather market data.",
		}
	}
	return ts
}
