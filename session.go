package petsera

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// SessionState is the store's position in the auth lifecycle.
type SessionState string

const (
	// StateUnknown covers bootstrap, before the provider observer has fired.
	StateUnknown SessionState = "unknown"
	// StateAuthenticated means a principal is present.
	StateAuthenticated SessionState = "authenticated"
	// StateAnonymous means the provider reported no session.
	StateAnonymous SessionState = "anonymous"
)

// SessionStore is the single source of truth for "who is signed in right
// now". It is constructor-injected rather than ambient so tests can run
// isolated instances; an application holds exactly one for its lifetime.
//
// The provider's observer feed is consumed by a single goroutine, which makes
// the store the sole sequencer for principal changes: a manual sign-out and a
// stale provider event cannot race each other into the state.
type SessionStore struct {
	mu      sync.RWMutex
	current Session
	subs    map[int]func(Session)
	nextSub int

	events <-chan SessionEvent
	done   chan struct{}
	wg     sync.WaitGroup

	logger Logger

	// transitions guards against out-of-order provider events; same shape as
	// a user-status transition table, but over session states.
	transitions map[SessionState]map[SessionState]struct{}
}

// NewSessionStore creates a store consuming the given observer feed and
// starts the consumer goroutine. Call Close to tear it down.
func NewSessionStore(events <-chan SessionEvent) *SessionStore {
	s := &SessionStore{
		current: Session{Principal: nil, Loading: true},
		subs:    map[int]func(Session){},
		events:  events,
		done:    make(chan struct{}),
		logger:  defLogger{},
		transitions: map[SessionState]map[SessionState]struct{}{
			StateUnknown: {
				StateAuthenticated: {},
				StateAnonymous:     {},
			},
			StateAuthenticated: {
				// re-entry covers provider token refreshes for the same or a
				// different principal
				StateAuthenticated: {},
				StateAnonymous:     {},
			},
			StateAnonymous: {
				StateAuthenticated: {},
				StateAnonymous:     {},
			},
		},
	}

	s.wg.Add(1)
	go s.consume()

	return s
}

// WithLogger overrides the store's logger.
func (s *SessionStore) WithLogger(l Logger) *SessionStore {
	if l != nil {
		s.mu.Lock()
		s.logger = l
		s.mu.Unlock()
	}
	return s
}

// Snapshot returns the current session.
func (s *SessionStore) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// WaitForPrincipal blocks until the consumer goroutine has applied a sign-in
// event carrying the given principal ID. Credential operations use it so they
// never report success while the observer feed still has the sign-in queued;
// a request issued right after a resolved sign-in must see the principal.
func (s *SessionStore) WaitForPrincipal(ctx context.Context, id string) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if cur := s.Snapshot(); cur.Principal != nil && cur.Principal.ID == id {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.CategoryOperation, "session did not apply sign-in in time")
		case <-s.done:
			return errors.New("session store closed", errors.CategoryOperation)
		case <-ticker.C:
		}
	}
}

// State derives the store's lifecycle state from the snapshot.
func (s *SessionStore) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *SessionStore) stateLocked() SessionState {
	if s.current.Principal != nil {
		return StateAuthenticated
	}
	if s.current.Loading {
		return StateUnknown
	}
	return StateAnonymous
}

// Subscribe registers a callback invoked on every session change and returns
// an unsubscribe func. Subscribing is idempotent-safe: every registration gets
// its own slot and every unsubscribe releases exactly that slot, so repeated
// subscribe/unsubscribe cycles cannot leak.
func (s *SessionStore) Subscribe(fn func(Session)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Close stops the consumer goroutine and drops all subscribers.
func (s *SessionStore) Close() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	s.wg.Wait()

	s.mu.Lock()
	s.subs = map[int]func(Session){}
	s.mu.Unlock()
}

func (s *SessionStore) consume() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case evt, ok := <-s.events:
			if !ok {
				return
			}
			s.apply(evt)
		}
	}
}

// apply is the only write path for the principal. Loading always resolves to
// false once the observer has spoken.
func (s *SessionStore) apply(evt SessionEvent) {
	s.mu.Lock()

	from := s.stateLocked()
	to := StateAnonymous
	if evt.Principal != nil {
		to = StateAuthenticated
	}

	if !s.canTransition(from, to) {
		s.logger.Warn("session store dropped invalid transition %s -> %s", from, to)
		s.mu.Unlock()
		return
	}

	s.current = Session{Principal: evt.Principal, Loading: false}
	snapshot := s.current
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// setLoading flips the loading flag for explicit credential operations. Only
// the Credentials service calls it; the principal itself is untouched.
func (s *SessionStore) setLoading(loading bool) {
	s.mu.Lock()
	if s.current.Loading == loading {
		s.mu.Unlock()
		return
	}
	s.current.Loading = loading
	snapshot := s.current
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

func (s *SessionStore) subscribersLocked() []func(Session) {
	out := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func (s *SessionStore) canTransition(from, to SessionState) bool {
	if allowed, ok := s.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}
