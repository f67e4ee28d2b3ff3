// ABOUTME: In-process session store keyed by conversation id, with idle expiry.
// ABOUTME: The store lock covers lookup only; each session serializes its own turns.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formpilot-ai/formpilot/action"
	"github.com/formpilot-ai/formpilot/agent"
)

// DefaultTTL is the idle expiry for sessions.
const DefaultTTL = 30 * time.Minute

// Session owns one conversation's state. Turns are serialized by the session
// mutex: a turn runs to completion before the next one for the same id starts.
type Session struct {
	id string

	mu           sync.Mutex
	state        *agent.State
	lastAccessed time.Time
}

// ID returns the conversation id.
func (s *Session) ID() string { return s.id }

// Answers returns a copy of the current answer map.
func (s *Session) Answers() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.state.Answers))
	for k, v := range s.state.Answers {
		out[k] = v
	}
	return out
}

// RunTurn executes one turn under the session lock and commits the successor
// state only when the turn succeeds. Returns the emitted action and a copy of
// the answers after the turn.
func (s *Session) RunTurn(ctx context.Context, o *agent.Orchestrator, input agent.TurnInput) (action.Action, map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	act, next, err := o.RunTurn(ctx, s.state, input)
	if err != nil {
		return action.Action{}, nil, err
	}
	s.state = next
	s.lastAccessed = next.LastAccessedAt

	answers := make(map[string]any, len(next.Answers))
	for k, v := range next.Answers {
		answers[k] = v
	}
	return act, answers, nil
}

// Store maps conversation ids to live sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL overrides the idle expiry.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithStoreClock injects a clock for expiry tests.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore builds an empty session store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new session for a form definition, parsing the markdown
// once. An empty id is replaced with a generated conversation id.
func (s *Store) Create(formContext, id string) (*Session, error) {
	if formContext == "" {
		return nil, fmt.Errorf("form context is empty")
	}
	if id == "" {
		id = uuid.NewString()
	}

	sess := &Session{
		id:           id,
		state:        agent.NewState(id, formContext),
		lastAccessed: s.now(),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	log.Printf("component=session action=create conversation=%s", id)
	return sess, nil
}

// Get returns the live session for id.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Delete removes a session, reporting whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	log.Printf("component=session action=delete conversation=%s", id)
	return true
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SweepExpired drops sessions idle past the TTL and returns how many fell.
func (s *Store) SweepExpired() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	candidates := make(map[string]*Session, len(s.sessions))
	for id, sess := range s.sessions {
		candidates[id] = sess
	}
	s.mu.Unlock()

	removed := 0
	for id, sess := range candidates {
		sess.mu.Lock()
		expired := sess.lastAccessed.Before(cutoff)
		sess.mu.Unlock()
		if !expired {
			continue
		}
		s.mu.Lock()
		if current, ok := s.sessions[id]; ok && current == sess {
			delete(s.sessions, id)
			removed++
		}
		s.mu.Unlock()
	}

	if removed > 0 {
		log.Printf("component=session action=sweep removed=%d remaining=%d", removed, s.Count())
	}
	return removed
}

// StartSweeper runs SweepExpired on an interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepExpired()
			}
		}
	}()
}
