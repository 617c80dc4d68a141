package events

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryStore keeps the most recent events per aggregate prefix.
type MemoryStore struct {
	Limit int

	mu     sync.Mutex
	events []Event
}

// Notify stores ev, evicting the oldest event once Limit is reached.
func (m *MemoryStore) Notify(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := m.Limit
	if limit <= 0 {
		limit = 1000
	}
	m.events = append(m.events, ev)
	if over := len(m.events) - limit; over > 0 {
		m.events = append([]Event(nil), m.events[over:]...)
	}
	return nil
}

// List returns events whose aggregate id starts with prefix, oldest first.
func (m *MemoryStore) List(prefix string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if strings.HasPrefix(ev.AggregateID, prefix) {
			out = append(out, ev)
		}
	}
	return out
}

// Drop removes events whose aggregate id starts with prefix.
func (m *MemoryStore) Drop(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, ev := range m.events {
		if !strings.HasPrefix(ev.AggregateID, prefix) {
			kept = append(kept, ev)
		}
	}
	m.events = kept
}

// LogNotifier writes every event to the context logger, falling back to Logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs the event.
func (n LogNotifier) Notify(ctx context.Context, ev Event) error {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &n.Logger
	}
	logger.Info().
		Str("topic", ev.Topic).
		Str("aggregate_id", ev.AggregateID).
		RawJSON("payload", ev.Payload).
		Msg("domain_event")
	return nil
}
