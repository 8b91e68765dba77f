package petsera

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCache is the process-wide cache for the backend session credential.
// Credential operations seed it after a successful exchange; the dispatcher
// reads it for every outgoing request and refreshes it from the identity
// provider when stale. It is invalidated on sign-out.
type TokenCache struct {
	mu      sync.Mutex
	token   string
	flight  *tokenFlight
	persist func(token string)
}

type tokenFlight struct {
	done  chan struct{}
	token string
	err   error
}

// NewTokenCache returns an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{}
}

// WithPersistence registers a hook invoked after every Set and Clear so the
// credential can survive restarts (see the localstate package). An empty
// string means cleared.
func (c *TokenCache) WithPersistence(persist func(token string)) *TokenCache {
	c.mu.Lock()
	c.persist = persist
	c.mu.Unlock()
	return c
}

// Set stores a fresh credential.
func (c *TokenCache) Set(token string) {
	c.mu.Lock()
	c.token = token
	persist := c.persist
	c.mu.Unlock()

	if persist != nil {
		persist(token)
	}
}

// Get returns the cached credential, which may be empty.
func (c *TokenCache) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Clear drops the credential. Called on sign-out.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	c.token = ""
	persist := c.persist
	c.mu.Unlock()

	if persist != nil {
		persist("")
	}
}

// tokenStale inspects the token's own exp claim without verifying the
// signature; verification is the backend's job, the client only needs to know
// whether a refresh is due. Unparseable tokens count as stale.
func tokenStale(token string, now time.Time) bool {
	if token == "" {
		return true
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return true
	}

	if claims.ExpiresAt == nil {
		return false
	}

	// refresh slightly early so an in-flight request does not expire mid-hop
	return !now.Add(30 * time.Second).Before(claims.ExpiresAt.Time)
}

// Transport stamps outgoing backend requests with the current bearer
// credential. It implements http.RoundTripper so it can back any *http.Client.
type Transport struct {
	// Base is the underlying transport; http.DefaultTransport when nil.
	Base http.RoundTripper

	store    *SessionStore
	tokens   *TokenCache
	provider IdentityProvider
	logger   Logger
	now      func() time.Time
}

// NewTransport wires the dispatcher to the session store, the token cache and
// the identity provider used for refreshes.
func NewTransport(store *SessionStore, tokens *TokenCache, provider IdentityProvider) *Transport {
	return &Transport{
		store:    store,
		tokens:   tokens,
		provider: provider,
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithLogger overrides the transport logger.
func (t *Transport) WithLogger(l Logger) *Transport {
	if l != nil {
		t.logger = l
	}
	return t
}

// RoundTrip attaches the bearer credential before dispatch. When no principal
// is present the Authorization header is omitted entirely; rejecting the
// unauthenticated call is the backend's responsibility.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	session := t.store.Snapshot()
	if session.Principal == nil {
		clone := req.Clone(req.Context())
		clone.Header.Del("Authorization")
		return t.base().RoundTrip(clone)
	}

	token, err := t.bearer(req)
	if err != nil {
		t.logger.Warn("dispatcher could not obtain bearer token: %s", err)
		return nil, err
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base().RoundTrip(clone)
}

// bearer returns the cached credential, refreshing it from the provider when
// stale. Concurrent refreshes collapse into a single provider round trip.
func (t *Transport) bearer(req *http.Request) (string, error) {
	cache := t.tokens

	cache.mu.Lock()
	if cache.token != "" && !tokenStale(cache.token, t.now()) {
		token := cache.token
		cache.mu.Unlock()
		return token, nil
	}

	if cache.flight != nil {
		flight := cache.flight
		cache.mu.Unlock()
		select {
		case <-flight.done:
			return flight.token, flight.err
		case <-req.Context().Done():
			return "", wrapNetwork(req.Context().Err(), "token refresh interrupted")
		}
	}

	flight := &tokenFlight{done: make(chan struct{})}
	cache.flight = flight
	force := cache.token != "" // a cached-but-stale token needs a forced mint
	cache.mu.Unlock()

	token, err := t.provider.IDToken(req.Context(), force)

	cache.mu.Lock()
	cache.flight = nil
	if err == nil {
		cache.token = token
	}
	persist := cache.persist
	cache.mu.Unlock()

	if err == nil && persist != nil {
		persist(token)
	}

	flight.token = token
	if err != nil {
		err = wrapNetwork(err, "identity provider token refresh failed")
	}
	flight.err = err
	close(flight.done)

	return token, err
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
