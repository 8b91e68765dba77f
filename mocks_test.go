package petsera_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	petsera "github.com/petsera/go-petsera"
)

const (
	testTimeout = time.Second
	testTick    = 10 * time.Millisecond
)

// MockIdentityProvider implements petsera.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
	events chan petsera.SessionEvent
}

func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		events: make(chan petsera.SessionEvent, 8),
	}
}

// Emit pushes an event onto the observer feed.
func (m *MockIdentityProvider) Emit(p *petsera.Principal) {
	m.events <- petsera.SessionEvent{Principal: p}
}

func (m *MockIdentityProvider) CreateUser(ctx context.Context, email, password string) (*petsera.Principal, error) {
	args := m.Called(ctx, email, password)
	return principalArg(args.Get(0)), args.Error(1)
}

func (m *MockIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*petsera.Principal, error) {
	args := m.Called(ctx, email, password)
	return principalArg(args.Get(0)), args.Error(1)
}

func (m *MockIdentityProvider) SignInWithIdP(ctx context.Context, provider, accessToken string) (*petsera.Principal, error) {
	args := m.Called(ctx, provider, accessToken)
	return principalArg(args.Get(0)), args.Error(1)
}

func (m *MockIdentityProvider) UpdateProfile(ctx context.Context, profile petsera.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockIdentityProvider) IDToken(ctx context.Context, force bool) (string, error) {
	args := m.Called(ctx, force)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIdentityProvider) SessionChanges() <-chan petsera.SessionEvent {
	return m.events
}

func principalArg(v any) *petsera.Principal {
	if v == nil {
		return nil
	}
	return v.(*petsera.Principal)
}

// MockTokenExchanger implements petsera.TokenExchanger
type MockTokenExchanger struct {
	mock.Mock
}

func (m *MockTokenExchanger) ExchangeToken(ctx context.Context, idToken string) (string, error) {
	args := m.Called(ctx, idToken)
	return args.String(0), args.Error(1)
}

func (m *MockTokenExchanger) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockUserRegistrar implements petsera.UserRegistrar
type MockUserRegistrar struct {
	mock.Mock
}

func (m *MockUserRegistrar) EnsureUser(ctx context.Context, record petsera.UserRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockRoleLookup implements petsera.RoleLookup
type MockRoleLookup struct {
	mock.Mock
}

func (m *MockRoleLookup) UserRole(ctx context.Context, email string) (petsera.Role, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(petsera.Role), args.Error(1)
}
