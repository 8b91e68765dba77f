package petsera

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Principal is the authenticated identity handle returned by the external
// identity provider. The application never owns its lifecycle; creation and
// deletion are delegated to the provider.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	// TokenProvider identifies which provider minted the identity, e.g.
	// "password", "google.com" or "github.com".
	TokenProvider string `json:"token_provider,omitempty"`
}

// Session is a snapshot of the client-side auth state: the current principal
// (nil until the provider observer has fired at least once) and a loading
// flag that is true during bootstrap and explicit credential operations.
type Session struct {
	Principal *Principal
	Loading   bool
}

// Authenticated reports whether a principal is present.
func (s Session) Authenticated() bool {
	return s.Principal != nil
}

// SessionEvent is emitted by the identity provider whenever the provider-side
// session changes. A nil Principal means signed out.
type SessionEvent struct {
	Principal *Principal
}

// Profile carries the provider-side profile attributes an application can set
// at registration time.
type Profile struct {
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	// Phone is the optional contact number used for adoption requests. It is
	// validated client-side but stored backend-side only.
	Phone string `json:"phone,omitempty"`
}

// IdentityProvider is the contract the external identity service must satisfy.
// The identity package ships the HTTP client; tests inject fakes.
type IdentityProvider interface {
	// CreateUser registers a new email/password identity and signs it in.
	CreateUser(ctx context.Context, email, password string) (*Principal, error)

	// SignInWithPassword authenticates an existing email/password identity.
	SignInWithPassword(ctx context.Context, email, password string) (*Principal, error)

	// SignInWithIdP authenticates with a social provider's OAuth token.
	SignInWithIdP(ctx context.Context, provider, accessToken string) (*Principal, error)

	// UpdateProfile updates display name and photo for the current identity.
	UpdateProfile(ctx context.Context, profile Profile) error

	// IDToken returns a bearer token for the current identity. When force is
	// true the provider must mint a fresh token instead of serving a cached one.
	IDToken(ctx context.Context, force bool) (string, error)

	// SignOut terminates the provider-side session.
	SignOut(ctx context.Context) error

	// SessionChanges is the provider's observer feed. The SessionStore is the
	// sole consumer; no other code path may apply events from it.
	SessionChanges() <-chan SessionEvent
}

// TokenExchanger trades a provider token for a backend session credential and
// invalidates it again on logout. The backend package implements it.
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, idToken string) (string, error)
	Logout(ctx context.Context) error
}

// UserRegistrar persists a user record to the backend. Implementations must
// treat an "already exists" conflict as success so social logins can race a
// prior registration.
type UserRegistrar interface {
	EnsureUser(ctx context.Context, record UserRecord) error
}

// RoleLookup resolves the backend-assigned role for an email.
type RoleLookup interface {
	UserRole(ctx context.Context, email string) (Role, error)
}

// UserRecord is the backend user document created at registration.
type UserRecord struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	PhotoURL  string    `json:"photoURL,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	LastLogIn time.Time `json:"last_log_in"`
}

// Config holds auth options shared by the core and the middleware.
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetLoginRoute() string
	GetAccessDeniedRoute() string
	GetReturnToKey() string
}

// NewLogger returns the default stdout logger.
func NewLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] PETSERA "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] PETSERA "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] PETSERA "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] PETSERA "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
