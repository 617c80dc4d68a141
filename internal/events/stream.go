package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream the desk appends events to.
const DefaultStream = "orderdesk:events"

// StreamSink appends events to a capped Redis stream so other services can
// follow submissions with XREAD.
type StreamSink struct {
	R      *redis.Client
	Stream string
	// MaxLen trims the stream approximately; zero keeps 10000 entries.
	MaxLen int64
}

// Notify implements Sink.
func (s StreamSink) Notify(ctx context.Context, ev Event) error {
	stream := s.Stream
	if stream == "" {
		stream = DefaultStream
	}
	maxLen := s.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return s.R.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{
			"id":           ev.ID.String(),
			"topic":        ev.Topic,
			"aggregate_id": ev.AggregateID,
			"payload":      string(ev.Payload),
			"occurred_at":  ev.OccurredAt.Format(time.RFC3339Nano),
		},
	}).Err()
}
