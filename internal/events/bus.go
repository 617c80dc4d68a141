package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is something that happened to a session or one of its orders.
// AggregateID is the session id, or "session/orderKey" for order events.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Sink receives every emitted event.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// Bus stamps events and fans them out to its sinks in order.
type Bus struct {
	Sinks []Sink
	Now   func() time.Time
}

// Emit builds the event and hands it to every sink. A failing sink does not
// stop the others; all failures are joined into the returned error.
func (b *Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) (Event, error) {
	if topic == "" || aggregateID == "" {
		return Event{}, errors.New("events: topic and aggregate id are required")
	}
	raw := json.RawMessage("{}")
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("events: encode %s payload: %w", topic, err)
		}
		raw = buf
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	ev := Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     raw,
		OccurredAt:  now().UTC(),
	}

	var errs []error
	for _, sink := range b.Sinks {
		if err := sink.Notify(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("events: %T: %w", sink, err))
		}
	}
	return ev, errors.Join(errs...)
}
