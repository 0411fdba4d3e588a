package negotiation

import (
	"testing"
	"time"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

func TestPlanTiming_WithDeadline(t *testing.T) {
	recv := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	deadline := recv.Add(10 * 24 * time.Hour)
	o := domain.Offer{ID: "o1", ReceivedDate: recv, DeadlineDate: &deadline}

	ts := PlanTiming(o, recv.Add(time.Hour))
	if !ts.RespondAfter.Equal(recv.Add(24*time.Hour)) || !ts.RespondBy.Equal(recv.Add(48*time.Hour)) {
		t.Fatalf("respond window = %v..%v", ts.RespondAfter, ts.RespondBy)
	}
	if !ts.CounterBy.Equal(deadline.Add(-48 * time.Hour)) {
		t.Fatalf("counter by = %v", ts.CounterBy)
	}
	if ts.Urgency != UrgencyLow {
		t.Fatalf("urgency = %s", ts.Urgency)
	}
}

func TestPlanTiming_Urgency(t *testing.T) {
	recv := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	o := domain.Offer{ReceivedDate: recv} // default 7-day window

	cases := []struct {
		at   time.Time
		want string
	}{
		{recv.Add(3 * 24 * time.Hour), UrgencyMedium},
		{recv.Add(6 * 24 * time.Hour), UrgencyHigh},
		{recv.Add(8 * 24 * time.Hour), UrgencyExpired},
	}
	for _, tc := range cases {
		ts := PlanTiming(o, tc.at)
		if ts.Urgency != tc.want {
			t.Fatalf("at %v: urgency = %s, want %s", tc.at, ts.Urgency, tc.want)
		}
		if ts.HoursRemaining < 0 {
			t.Fatal("hours remaining must not be negative")
		}
	}
}

func TestPlanTiming_ShortDeadlineClampsWindow(t *testing.T) {
	recv := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	deadline := recv.Add(12 * time.Hour)
	ts := PlanTiming(domain.Offer{ReceivedDate: recv, DeadlineDate: &deadline}, recv)
	if ts.RespondBy.After(deadline) || ts.CounterBy.After(deadline) {
		t.Fatalf("window exceeds deadline: %+v", ts)
	}
}
