package petsera

import (
	"context"
	"strings"
	"sync"
)

// RoleResolver answers "what role does this email carry" with a per-email
// cache in front of the backend lookup. Concurrent callers asking for the same
// email share one backend round trip, and a failed lookup resolves to the
// least-privileged role instead of an error: a flaky network can delay admin
// access but can never grant it.
type RoleResolver struct {
	lookup RoleLookup

	mu     sync.Mutex
	cache  map[string]Role
	flight map[string]*roleFlight

	logger Logger
}

type roleFlight struct {
	done chan struct{}
	role Role
}

// NewRoleResolver returns a resolver backed by the given lookup.
func NewRoleResolver(lookup RoleLookup) *RoleResolver {
	return &RoleResolver{
		lookup: lookup,
		cache:  map[string]Role{},
		flight: map[string]*roleFlight{},
		logger: defLogger{},
	}
}

// WithLogger overrides the resolver logger.
func (r *RoleResolver) WithLogger(l Logger) *RoleResolver {
	if l != nil {
		r.logger = l
	}
	return r
}

// Resolve returns the role for email, consulting the cache first. A lookup
// failure logs and resolves to RoleUser; the failed result is NOT cached so a
// later call can pick up the real role once the backend recovers.
func (r *RoleResolver) Resolve(ctx context.Context, email string) Role {
	email = normalizeEmail(email)
	if email == "" {
		return RoleUser
	}

	r.mu.Lock()
	if role, ok := r.cache[email]; ok {
		r.mu.Unlock()
		return role
	}

	if flight, ok := r.flight[email]; ok {
		r.mu.Unlock()
		select {
		case <-flight.done:
			return flight.role
		case <-ctx.Done():
			return RoleUser
		}
	}

	flight := &roleFlight{done: make(chan struct{})}
	r.flight[email] = flight
	r.mu.Unlock()

	role, err := r.lookup.UserRole(ctx, email)

	r.mu.Lock()
	delete(r.flight, email)
	if err != nil {
		r.logger.Warn("Role lookup failed for %s, falling back to user: %s", email, err)
		role = RoleUser
	} else {
		if parsed, ok := ParseRole(string(role)); !ok {
			r.logger.Warn("Role lookup returned unknown role %q for %s", role, email)
			role = parsed
		}
		r.cache[email] = role
	}
	r.mu.Unlock()

	flight.role = role
	close(flight.done)

	return role
}

// Peek returns the cached role without triggering a lookup.
func (r *RoleResolver) Peek(email string) (Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.cache[normalizeEmail(email)]
	return role, ok
}

// Invalidate drops every cached role. Called on sign-out so the next principal
// starts from a clean slate.
func (r *RoleResolver) Invalidate() {
	r.mu.Lock()
	r.cache = map[string]Role{}
	r.mu.Unlock()
}

// InvalidateEmail drops a single cached entry, e.g. after an admin promotion.
func (r *RoleResolver) InvalidateEmail(email string) {
	r.mu.Lock()
	delete(r.cache, normalizeEmail(email))
	r.mu.Unlock()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
