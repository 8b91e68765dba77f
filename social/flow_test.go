package social_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	petsera "github.com/petsera/go-petsera"
	"github.com/petsera/go-petsera/social"
)

// fakeProvider is a scripted social.Provider.
type fakeProvider struct {
	name          string
	exchangeErr   error
	userInfoErr   error
	emailVerified bool

	lastVerifier string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(nil, opts...)
	q := url.Values{"state": {state}}
	if cfg.CodeChallenge != "" {
		q.Set("code_challenge", cfg.CodeChallenge)
		q.Set("code_challenge_method", cfg.CodeChallengeMethod)
	}
	return "https://provider.example.com/authorize?" + q.Encode()
}

func (p *fakeProvider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	cfg := social.ApplyExchangeOptions(opts...)
	p.lastVerifier = cfg.CodeVerifier
	return &social.Token{AccessToken: "access-" + code}, nil
}

func (p *fakeProvider) UserInfo(ctx context.Context, token *social.Token) (*social.Profile, error) {
	if p.userInfoErr != nil {
		return nil, p.userInfoErr
	}
	return &social.Profile{
		Provider:      p.name,
		Email:         "alice@example.com",
		EmailVerified: p.emailVerified,
		Name:          "Alice",
	}, nil
}

func newTestFlow(providers ...social.Provider) *social.Flow {
	opts := make([]social.FlowOption, 0, len(providers))
	for _, p := range providers {
		opts = append(opts, social.WithProvider(p))
	}
	return social.NewFlow(social.FlowConfig{
		DefaultRedirectURL: "/",
		StateEncryptionKey: testEncryptionKey,
		StateHMACKey:       testHMACKey,
		StateTTL:           10 * time.Minute,
	}, opts...)
}

func TestFlowBegin(t *testing.T) {
	provider := &fakeProvider{name: "google.com", emailVerified: true}
	flow := newTestFlow(provider)

	redirect, err := flow.Begin(context.Background(), "google.com", "/dashboard")
	require.NoError(t, err)

	assert.Equal(t, "google.com", redirect.Provider)
	assert.NotEmpty(t, redirect.State)
	assert.True(t, strings.Contains(redirect.URL, "code_challenge="))
	assert.True(t, flow.InProgress())
}

func TestFlowBeginUnknownProvider(t *testing.T) {
	flow := newTestFlow()
	_, err := flow.Begin(context.Background(), "myspace.com", "/")
	assert.ErrorIs(t, err, social.ErrProviderNotFound)
}

func TestFlowSingleOutstanding(t *testing.T) {
	provider := &fakeProvider{name: "google.com", emailVerified: true}
	flow := newTestFlow(provider)

	_, err := flow.Begin(context.Background(), "google.com", "/")
	require.NoError(t, err)

	// a second begin while one is outstanding fails instead of silently
	// abandoning the first
	_, err = flow.Begin(context.Background(), "google.com", "/")
	require.Error(t, err)
	assert.True(t, petsera.IsFlowInProgress(err))

	flow.Cancel()
	assert.False(t, flow.InProgress())

	_, err = flow.Begin(context.Background(), "google.com", "/")
	assert.NoError(t, err)
}

func TestFlowComplete(t *testing.T) {
	provider := &fakeProvider{name: "google.com", emailVerified: true}
	flow := newTestFlow(provider)

	redirect, err := flow.Begin(context.Background(), "google.com", "/dashboard")
	require.NoError(t, err)

	completion, err := flow.Complete(context.Background(), "google.com", "auth-code", redirect.State, "")
	require.NoError(t, err)

	assert.Equal(t, "google.com", completion.Provider)
	assert.Equal(t, "access-auth-code", completion.AccessToken)
	assert.Equal(t, "/dashboard", completion.RedirectURL)
	assert.Equal(t, "alice@example.com", completion.Profile.Email)
	// the PKCE verifier minted at begin must reach the exchange
	assert.NotEmpty(t, provider.lastVerifier)

	// completion clears the outstanding flow
	assert.False(t, flow.InProgress())
}

func TestFlowCompleteUserDenied(t *testing.T) {
	provider := &fakeProvider{name: "google.com", emailVerified: true}
	flow := newTestFlow(provider)

	redirect, err := flow.Begin(context.Background(), "google.com", "/")
	require.NoError(t, err)

	_, err = flow.Complete(context.Background(), "google.com", "", redirect.State, "access_denied")
	require.Error(t, err)
	assert.True(t, petsera.IsFlowCanceled(err))
	assert.False(t, flow.InProgress())
}

func TestFlowCompleteProviderMismatch(t *testing.T) {
	google := &fakeProvider{name: "google.com", emailVerified: true}
	gh := &fakeProvider{name: "github.com", emailVerified: true}
	flow := newTestFlow(google, gh)

	redirect, err := flow.Begin(context.Background(), "google.com", "/")
	require.NoError(t, err)

	_, err = flow.Complete(context.Background(), "github.com", "auth-code", redirect.State, "")
	assert.ErrorIs(t, err, social.ErrInvalidState)
}

func TestFlowCompleteBadState(t *testing.T) {
	provider := &fakeProvider{name: "google.com", emailVerified: true}
	flow := newTestFlow(provider)

	_, err := flow.Complete(context.Background(), "google.com", "auth-code", "forged-state", "")
	assert.Error(t, err)
}

func TestFlowCompleteExchangeFailure(t *testing.T) {
	provider := &fakeProvider{name: "google.com", exchangeErr: assert.AnError}
	flow := newTestFlow(provider)

	redirect, err := flow.Begin(context.Background(), "google.com", "/")
	require.NoError(t, err)

	_, err = flow.Complete(context.Background(), "google.com", "auth-code", redirect.State, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), social.ErrTokenExchangeFailed.Message)
}

func TestFlowRequireEmailVerified(t *testing.T) {
	provider := &fakeProvider{name: "google.com", emailVerified: false}
	flow := social.NewFlow(social.FlowConfig{
		StateEncryptionKey:   testEncryptionKey,
		StateHMACKey:         testHMACKey,
		RequireEmailVerified: true,
	}, social.WithProvider(provider))

	redirect, err := flow.Begin(context.Background(), "google.com", "/")
	require.NoError(t, err)

	_, err = flow.Complete(context.Background(), "google.com", "auth-code", redirect.State, "")
	assert.ErrorIs(t, err, social.ErrEmailNotVerified)
}
