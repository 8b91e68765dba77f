package petsera_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	petsera "github.com/petsera/go-petsera"
)

func TestRoleResolverCachesSuccess(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockRoleLookup)
	lookup.On("UserRole", ctx, "admin@example.com").Return(petsera.RoleAdmin, nil).Once()

	resolver := petsera.NewRoleResolver(lookup)

	assert.Equal(t, petsera.RoleAdmin, resolver.Resolve(ctx, "admin@example.com"))
	// second call must come from the cache
	assert.Equal(t, petsera.RoleAdmin, resolver.Resolve(ctx, "admin@example.com"))

	cached, ok := resolver.Peek("admin@example.com")
	assert.True(t, ok)
	assert.Equal(t, petsera.RoleAdmin, cached)

	lookup.AssertExpectations(t)
}

func TestRoleResolverNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockRoleLookup)
	lookup.On("UserRole", ctx, "admin@example.com").Return(petsera.RoleAdmin, nil).Once()

	resolver := petsera.NewRoleResolver(lookup)

	assert.Equal(t, petsera.RoleAdmin, resolver.Resolve(ctx, "  Admin@Example.COM "))
	assert.Equal(t, petsera.RoleAdmin, resolver.Resolve(ctx, "admin@example.com"))

	lookup.AssertExpectations(t)
}

func TestRoleResolverFallsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockRoleLookup)
	lookup.On("UserRole", ctx, "flaky@example.com").
		Return(petsera.RoleUnresolved, assert.AnError).Once()
	lookup.On("UserRole", ctx, "flaky@example.com").
		Return(petsera.RoleAdmin, nil).Once()

	resolver := petsera.NewRoleResolver(lookup)

	// a failed lookup resolves to the least-privileged role
	assert.Equal(t, petsera.RoleUser, resolver.Resolve(ctx, "flaky@example.com"))

	// and is not cached, so the next call hits the backend again
	_, cached := resolver.Peek("flaky@example.com")
	assert.False(t, cached)
	assert.Equal(t, petsera.RoleAdmin, resolver.Resolve(ctx, "flaky@example.com"))

	lookup.AssertExpectations(t)
}

func TestRoleResolverUnknownRoleDowngrades(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockRoleLookup)
	lookup.On("UserRole", ctx, "odd@example.com").
		Return(petsera.Role("superuser"), nil).Once()

	resolver := petsera.NewRoleResolver(lookup)

	assert.Equal(t, petsera.RoleUser, resolver.Resolve(ctx, "odd@example.com"))
	lookup.AssertExpectations(t)
}

func TestRoleResolverEmptyEmail(t *testing.T) {
	resolver := petsera.NewRoleResolver(new(MockRoleLookup))
	assert.Equal(t, petsera.RoleUser, resolver.Resolve(context.Background(), ""))
}

func TestRoleResolverInvalidate(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockRoleLookup)
	lookup.On("UserRole", ctx, "a@example.com").Return(petsera.RoleAdmin, nil).Twice()
	lookup.On("UserRole", ctx, "b@example.com").Return(petsera.RoleUser, nil).Once()

	resolver := petsera.NewRoleResolver(lookup)
	resolver.Resolve(ctx, "a@example.com")
	resolver.Resolve(ctx, "b@example.com")

	resolver.InvalidateEmail("a@example.com")
	_, ok := resolver.Peek("a@example.com")
	assert.False(t, ok)
	_, ok = resolver.Peek("b@example.com")
	assert.True(t, ok)

	resolver.Resolve(ctx, "a@example.com")

	resolver.Invalidate()
	_, ok = resolver.Peek("b@example.com")
	assert.False(t, ok)

	lookup.AssertExpectations(t)
}

// slowLookup blocks every lookup until released so concurrency can be
// exercised deterministically.
type slowLookup struct {
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (s *slowLookup) UserRole(ctx context.Context, email string) (petsera.Role, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	<-s.release
	return petsera.RoleAdmin, nil
}

func TestRoleResolverDeduplicatesConcurrentLookups(t *testing.T) {
	lookup := &slowLookup{release: make(chan struct{})}
	resolver := petsera.NewRoleResolver(lookup)

	var wg sync.WaitGroup
	results := make([]petsera.Role, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = resolver.Resolve(context.Background(), "shared@example.com")
		}(i)
	}

	// let the goroutines pile up behind the single in-flight lookup
	assert.Eventually(t, func() bool {
		lookup.mu.Lock()
		defer lookup.mu.Unlock()
		return lookup.calls == 1
	}, testTimeout, testTick)

	close(lookup.release)
	wg.Wait()

	for _, role := range results {
		assert.Equal(t, petsera.RoleAdmin, role)
	}

	lookup.mu.Lock()
	assert.Equal(t, 1, lookup.calls)
	lookup.mu.Unlock()
}
