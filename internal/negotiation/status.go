package negotiation

import (
	"fmt"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// Session status graph:
//
//	Preparing ──► In Negotiation ──► Accepted | Declined | Withdrawn | Expired
//	    │
//	    └──► Accepted | Declined | Withdrawn | Expired
//
// Terminal states have no outgoing transitions.
var validTransitions = map[domain.SessionStatus][]domain.SessionStatus{
	domain.SessionPreparing: {
		domain.SessionInNegotiation,
		domain.SessionAccepted, domain.SessionDeclined, domain.SessionWithdrawn, domain.SessionExpired,
	},
	domain.SessionInNegotiation: {
		domain.SessionAccepted, domain.SessionDeclined, domain.SessionWithdrawn, domain.SessionExpired,
	},
}

// ParseStatus converts a raw string to a SessionStatus.
func ParseStatus(s string) (domain.SessionStatus, error) {
	st := domain.SessionStatus(s)
	switch st {
	case domain.SessionPreparing, domain.SessionInNegotiation,
		domain.SessionAccepted, domain.SessionDeclined, domain.SessionWithdrawn, domain.SessionExpired:
		return st, nil
	}
	return "", fmt.Errorf("unknown negotiation status %q", s)
}

// ParseOutcome validates a user-recorded outcome. Expired is reserved for the
// deadline sweep and is not accepted here.
func ParseOutcome(s string) (domain.SessionStatus, error) {
	st := domain.SessionStatus(s)
	switch st {
	case domain.SessionAccepted, domain.SessionDeclined, domain.SessionWithdrawn:
		return st, nil
	}
	return "", fmt.Errorf("outcome must be one of Accepted, Declined, Withdrawn; got %q", s)
}

// IsTransitionAllowed reports whether from → to is permitted.
func IsTransitionAllowed(from, to domain.SessionStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether st is one of the final outcomes. Unknown values
// are not terminal.
func IsTerminal(st domain.SessionStatus) bool {
	return domain.NegotiationSession{Status: st}.IsTerminal()
}

// StatusAfterOffer returns the status a session moves to when an offer of
// type t is added. Counter and Final offers open the negotiation; an Initial
// offer leaves the status unchanged.
func StatusAfterOffer(current domain.SessionStatus, t domain.OfferType) domain.SessionStatus {
	if current == domain.SessionPreparing && (t == domain.OfferCounter || t == domain.OfferFinal) {
		return domain.SessionInNegotiation
	}
	return current
}
