package social

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-errors"

	petsera "github.com/petsera/go-petsera"
)

// FlowConfig configures the flow coordinator.
type FlowConfig struct {
	// DefaultRedirectURL is where the user lands after completion when the
	// begin call did not say otherwise.
	DefaultRedirectURL string

	StateEncryptionKey []byte
	StateHMACKey       []byte
	StateTTL           time.Duration

	// RequireEmailVerified rejects profiles whose provider email is not
	// verified.
	RequireEmailVerified bool
}

// Flow coordinates social sign-in: it hands out authorization redirects and
// completes callbacks. Only one flow may be outstanding at a time; starting a
// second one fails instead of silently abandoning the first, which is how a
// second login popup behaves everywhere else in the product.
type Flow struct {
	providers map[string]Provider
	states    StateCodec
	config    FlowConfig

	mu          sync.Mutex
	outstanding string // state token of the flow in progress, "" when idle
}

// FlowOption configures the flow coordinator.
type FlowOption func(*Flow)

// WithProvider registers a provider.
func WithProvider(provider Provider) FlowOption {
	return func(f *Flow) {
		if provider != nil {
			f.providers[provider.Name()] = provider
		}
	}
}

// WithStateCodec sets a custom state codec.
func WithStateCodec(codec StateCodec) FlowOption {
	return func(f *Flow) {
		f.states = codec
	}
}

// NewFlow creates a flow coordinator.
func NewFlow(config FlowConfig, opts ...FlowOption) *Flow {
	if config.StateTTL == 0 {
		config.StateTTL = 10 * time.Minute
	}

	f := &Flow{
		providers: make(map[string]Provider),
		config:    config,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	if f.states == nil {
		f.states = NewStateCodec(
			config.StateEncryptionKey,
			config.StateHMACKey,
			config.StateTTL,
		)
	}

	return f
}

// Redirect is the begin-auth result.
type Redirect struct {
	URL      string
	State    string
	Provider string
}

// Completion is the complete-auth result the credential operations consume.
type Completion struct {
	Provider    string
	AccessToken string
	Profile     *Profile
	RedirectURL string
}

// Begin starts the OAuth flow for a provider. A flow already in progress
// fails with ErrFlowInProgress until it completes, is canceled, or expires.
func (f *Flow) Begin(ctx context.Context, providerName, redirectURL string) (*Redirect, error) {
	provider, ok := f.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	if redirectURL == "" {
		redirectURL = f.config.DefaultRedirectURL
	}

	codeVerifier, err := newCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	codeChallenge := challengeS256(codeVerifier)

	claim := &StateClaim{
		Provider:  providerName,
		Verifier:  codeVerifier,
		ReturnTo:  redirectURL,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(f.config.StateTTL).Unix(),
	}

	stateToken, err := f.states.Seal(claim)
	if err != nil {
		return nil, fmt.Errorf("failed to seal state: %w", err)
	}

	f.mu.Lock()
	if f.outstanding != "" {
		if !f.outstandingExpiredLocked() {
			f.mu.Unlock()
			return nil, petsera.ErrFlowInProgress
		}
		// a flow the user walked away from; let the new one replace it
		f.outstanding = ""
	}
	f.outstanding = stateToken
	f.mu.Unlock()

	authURL := provider.AuthCodeURL(stateToken, WithPKCE(codeChallenge, "S256"))

	return &Redirect{
		URL:      authURL,
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// Complete finishes the flow after the provider callback. callbackErr is the
// error query parameter from the callback; the user clicking "deny" or
// closing the consent screen arrives here as access_denied and maps to
// ErrFlowCanceled, which callers treat as a non-event.
func (f *Flow) Complete(ctx context.Context, providerName, code, stateToken, callbackErr string) (*Completion, error) {
	defer f.clear(stateToken)

	if callbackErr != "" {
		if callbackErr == "access_denied" {
			return nil, petsera.ErrFlowCanceled
		}
		return nil, errors.New("social sign-in failed: "+callbackErr, errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	state, err := f.states.Open(stateToken)
	if err != nil {
		if errors.Is(err, ErrStateExpired) {
			return nil, ErrStateExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if state.Provider != providerName {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}

	provider, ok := f.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.Verifier))
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, err)
	}

	if f.config.RequireEmailVerified && !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &Completion{
		Provider:    providerName,
		AccessToken: token.AccessToken,
		Profile:     profile,
		RedirectURL: state.ReturnTo,
	}, nil
}

// Cancel abandons the outstanding flow, if any.
func (f *Flow) Cancel() {
	f.mu.Lock()
	f.outstanding = ""
	f.mu.Unlock()
}

// InProgress reports whether a flow is outstanding and not yet expired.
func (f *Flow) InProgress() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outstanding != "" && !f.outstandingExpiredLocked()
}

func (f *Flow) clear(stateToken string) {
	f.mu.Lock()
	if f.outstanding == stateToken || stateToken == "" {
		f.outstanding = ""
	}
	f.mu.Unlock()
}

// outstandingExpiredLocked checks the outstanding state token's own expiry.
func (f *Flow) outstandingExpiredLocked() bool {
	state, err := f.states.Open(f.outstanding)
	if err != nil {
		return true
	}
	return time.Now().Unix() > state.ExpiresAt
}

func wrapProviderError(base *errors.Error, providerName string, err error) error {
	return errors.Wrap(err, base.Category, base.Message).
		WithTextCode(base.TextCode).
		WithCode(base.Code).
		WithMetadata(map[string]any{"provider": providerName})
}
