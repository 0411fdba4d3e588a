// Package events publishes negotiation lifecycle events. Delivery is best
// effort: a failed publish never fails the operation that produced it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event channel names.
const (
	NegotiationCompleted = "NEGOTIATION_COMPLETED"
	NegotiationExpired   = "NEGOTIATION_EXPIRED"
)

// Event is the payload published for a session state change.
type Event struct {
	Type          string    `json:"type"`
	NegotiationID string    `json:"negotiation_id"`
	UserID        string    `json:"user_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	FinalSalary   *float64  `json:"final_salary,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// RedisPublisher publishes each event as JSON on a channel named after its type.
type RedisPublisher struct {
	Client *redis.Client
}

// Publish implements Publisher.
func (p RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.Client.Publish(ctx, e.Type, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Recorder keeps published events in memory. It is meant for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
