package petsera_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	petsera "github.com/petsera/go-petsera"
)

func waitSession(t *testing.T, ch <-chan petsera.Session) petsera.Session {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session update")
		return petsera.Session{}
	}
}

func TestSessionStoreStartsLoading(t *testing.T) {
	events := make(chan petsera.SessionEvent)
	store := petsera.NewSessionStore(events)
	defer store.Close()

	snapshot := store.Snapshot()
	assert.Nil(t, snapshot.Principal)
	assert.True(t, snapshot.Loading)
	assert.False(t, snapshot.Authenticated())
	assert.Equal(t, petsera.StateUnknown, store.State())
}

func TestSessionStoreAppliesObserverEvents(t *testing.T) {
	events := make(chan petsera.SessionEvent, 4)
	store := petsera.NewSessionStore(events)
	defer store.Close()

	updates := make(chan petsera.Session, 8)
	unsub := store.Subscribe(func(s petsera.Session) { updates <- s })
	defer unsub()

	userID := uuid.New().String()
	events <- petsera.SessionEvent{Principal: &petsera.Principal{ID: userID, Email: "alice@example.com"}}

	s := waitSession(t, updates)
	require.NotNil(t, s.Principal)
	assert.Equal(t, userID, s.Principal.ID)
	assert.Equal(t, "alice@example.com", s.Principal.Email)
	assert.False(t, s.Loading)
	assert.Equal(t, petsera.StateAuthenticated, store.State())

	events <- petsera.SessionEvent{Principal: nil}

	s = waitSession(t, updates)
	assert.Nil(t, s.Principal)
	assert.False(t, s.Loading)
	assert.Equal(t, petsera.StateAnonymous, store.State())
}

func TestSessionStorePrincipalReflectsLastEvent(t *testing.T) {
	events := make(chan petsera.SessionEvent, 4)
	store := petsera.NewSessionStore(events)
	defer store.Close()

	updates := make(chan petsera.Session, 8)
	unsub := store.Subscribe(func(s petsera.Session) { updates <- s })
	defer unsub()

	events <- petsera.SessionEvent{Principal: &petsera.Principal{ID: "u1", Email: "first@example.com"}}
	waitSession(t, updates)

	// provider token refresh re-emits; last event wins
	events <- petsera.SessionEvent{Principal: &petsera.Principal{ID: "u2", Email: "second@example.com"}}
	s := waitSession(t, updates)

	require.NotNil(t, s.Principal)
	assert.Equal(t, "u2", s.Principal.ID)
	assert.Equal(t, "second@example.com", s.Principal.Email)

	events <- petsera.SessionEvent{Principal: nil}
	s = waitSession(t, updates)
	assert.Nil(t, s.Principal)
}

func TestSessionStoreUnsubscribeStopsCallbacks(t *testing.T) {
	events := make(chan petsera.SessionEvent, 4)
	store := petsera.NewSessionStore(events)
	defer store.Close()

	updates := make(chan petsera.Session, 8)
	unsub := store.Subscribe(func(s petsera.Session) { updates <- s })

	events <- petsera.SessionEvent{Principal: &petsera.Principal{ID: "u1"}}
	waitSession(t, updates)

	unsub()
	unsub() // double unsubscribe must be harmless

	events <- petsera.SessionEvent{Principal: nil}

	// give the consumer time to run; no update should arrive
	assert.Eventually(t, func() bool {
		return store.State() == petsera.StateAnonymous
	}, time.Second, 10*time.Millisecond)

	select {
	case <-updates:
		t.Fatal("unsubscribed callback still received an update")
	default:
	}
}

func TestSessionStoreCloseIsIdempotent(t *testing.T) {
	events := make(chan petsera.SessionEvent)
	store := petsera.NewSessionStore(events)

	store.Close()
	store.Close()
}
