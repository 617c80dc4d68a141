package desk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/order-desk/internal/events"
	"github.com/noah-isme/order-desk/internal/obs"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns the live workspaces. Idle sessions expire after TTL; expiry
// is checked lazily on access.
type Manager struct {
	Deps Deps
	TTL  time.Duration
	Now  func() time.Time
	// Events, when set, is dropped for a session when it closes.
	Events *events.MemoryStore

	mu       sync.Mutex
	sessions map[string]*Workspace
}

// NewManager constructs a manager.
func NewManager(deps Deps, ttl time.Duration) *Manager {
	return &Manager{Deps: deps, TTL: ttl, sessions: make(map[string]*Workspace)}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Create opens a session for the parsed orders.
func (m *Manager) Create(ctx context.Context, parsed []ParsedOrder) *Workspace {
	now := m.now()
	w := NewWorkspace(uuid.NewString(), m.Deps, parsed, now)

	m.mu.Lock()
	if m.sessions == nil {
		m.sessions = make(map[string]*Workspace)
	}
	expired := m.sweepLocked(now)
	m.sessions[w.ID] = w
	m.mu.Unlock()

	m.closed(ctx, expired)
	obs.SessionOpened()
	w.emit(ctx, events.TopicSessionCreated, w.ID, map[string]int{"orders": len(parsed)})
	return w
}

// Get returns a live session and marks it used.
func (m *Manager) Get(ctx context.Context, id string) (*Workspace, error) {
	now := m.now()
	m.mu.Lock()
	expired := m.sweepLocked(now)
	w, ok := m.sessions[id]
	m.mu.Unlock()

	m.closed(ctx, expired)
	if !ok {
		return nil, ErrSessionNotFound
	}
	w.Touch(now)
	return w, nil
}

// Close drops a session.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	w, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	m.closed(ctx, []*Workspace{w})
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) sweepLocked(now time.Time) []*Workspace {
	if m.TTL <= 0 {
		return nil
	}
	var expired []*Workspace
	for id, w := range m.sessions {
		if now.Sub(w.LastUsed()) > m.TTL {
			expired = append(expired, w)
			delete(m.sessions, id)
		}
	}
	return expired
}

func (m *Manager) closed(ctx context.Context, ws []*Workspace) {
	for _, w := range ws {
		obs.SessionClosed()
		w.emit(ctx, events.TopicSessionClosed, w.ID, nil)
		if m.Events != nil {
			m.Events.Drop(w.ID)
		}
	}
}
