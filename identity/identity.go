// Package identity implements the hosted identity provider client: account
// creation, password and federated sign-in, token refresh, and the observer
// feed the session store consumes.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"

	petsera "github.com/petsera/go-petsera"
)

const (
	defaultBaseURL        = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL = "https://securetoken.googleapis.com/v1"

	// refresh tokens a minute before their reported expiry
	expirySkew = time.Minute
)

// Config holds identity provider configuration.
type Config struct {
	APIKey string

	BaseURL        string
	SecureTokenURL string

	HTTPClient *http.Client
	Logger     petsera.Logger

	// EventBuffer sizes the observer feed. The session store drains it on a
	// dedicated goroutine, so a small buffer only has to absorb bursts.
	EventBuffer int
}

// Client talks to the hosted identity service and tracks the current
// provider-side session. It implements petsera.IdentityProvider.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     petsera.Logger

	mu        sync.Mutex
	principal *petsera.Principal
	idToken   string
	refresh   string
	expiresAt time.Time

	events chan petsera.SessionEvent
}

// New creates an identity client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.SecureTokenURL == "" {
		cfg.SecureTokenURL = defaultSecureTokenURL
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 16
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Client{
		config:     cfg,
		httpClient: client,
		logger:     logger,
		events:     make(chan petsera.SessionEvent, cfg.EventBuffer),
	}
}

// SessionChanges implements petsera.IdentityProvider.
func (c *Client) SessionChanges() <-chan petsera.SessionEvent {
	return c.events
}

// CreateUser implements petsera.IdentityProvider.
func (c *Client) CreateUser(ctx context.Context, email, password string) (*petsera.Principal, error) {
	var resp authResponse
	err := c.post(ctx, c.accountsURL("signUp"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return c.adopt(resp, "password"), nil
}

// SignInWithPassword implements petsera.IdentityProvider.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*petsera.Principal, error) {
	var resp authResponse
	err := c.post(ctx, c.accountsURL("signInWithPassword"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return c.adopt(resp, "password"), nil
}

// SignInWithIdP implements petsera.IdentityProvider. The provider name is the
// issuer domain, e.g. "google.com" or "github.com".
func (c *Client) SignInWithIdP(ctx context.Context, provider, accessToken string) (*petsera.Principal, error) {
	postBody := url.Values{
		"access_token": {accessToken},
		"providerId":   {provider},
	}

	var resp authResponse
	err := c.post(ctx, c.accountsURL("signInWithIdp"), map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          "http://localhost",
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return c.adopt(resp, provider), nil
}

// UpdateProfile implements petsera.IdentityProvider.
func (c *Client) UpdateProfile(ctx context.Context, profile petsera.Profile) error {
	c.mu.Lock()
	idToken := c.idToken
	principal := c.principal
	c.mu.Unlock()

	if idToken == "" || principal == nil {
		return errors.New("no active identity session", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	var resp authResponse
	err := c.post(ctx, c.accountsURL("update"), map[string]any{
		"idToken":           idToken,
		"displayName":       profile.DisplayName,
		"photoUrl":          profile.PhotoURL,
		"returnSecureToken": false,
	}, &resp)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.principal != nil {
		updated := *c.principal
		updated.DisplayName = profile.DisplayName
		if profile.PhotoURL != "" {
			updated.PhotoURL = profile.PhotoURL
		}
		c.principal = &updated
		c.emitLocked(petsera.SessionEvent{Principal: c.principal})
	}
	c.mu.Unlock()

	return nil
}

// IDToken implements petsera.IdentityProvider. The cached token is served
// until it nears expiry; force always goes through the refresh endpoint.
func (c *Client) IDToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	if c.refresh == "" && c.idToken == "" {
		c.mu.Unlock()
		return "", errors.New("no active identity session", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	if !force && c.idToken != "" && time.Now().Add(expirySkew).Before(c.expiresAt) {
		token := c.idToken
		c.mu.Unlock()
		return token, nil
	}
	refresh := c.refresh
	c.mu.Unlock()

	if refresh == "" {
		return "", errors.New("identity session cannot be refreshed", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
	}

	endpoint := c.config.SecureTokenURL + "/token?key=" + url.QueryEscape(c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryOperation, "identity token refresh failed")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryOperation, "identity token refresh failed")
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", apiError("token", httpResp.StatusCode, body)
	}

	var resp refreshResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, errors.CategoryOperation, "invalid token refresh response")
	}

	c.mu.Lock()
	c.idToken = resp.IDToken
	if resp.RefreshToken != "" {
		c.refresh = resp.RefreshToken
	}
	c.expiresAt = time.Now().Add(parseExpiresIn(resp.ExpiresIn))
	token := c.idToken
	c.mu.Unlock()

	return token, nil
}

// SignOut implements petsera.IdentityProvider. Dropping the local session is
// the whole operation; the hosted service keeps no server-side session state
// beyond the refresh token, which simply stops being used.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.principal = nil
	c.idToken = ""
	c.refresh = ""
	c.expiresAt = time.Time{}
	c.emitLocked(petsera.SessionEvent{Principal: nil})
	c.mu.Unlock()
	return nil
}

// adopt stores the authenticated session and emits the observer event.
func (c *Client) adopt(resp authResponse, provider string) *petsera.Principal {
	principal := &petsera.Principal{
		ID:            resp.LocalID,
		Email:         resp.Email,
		DisplayName:   resp.DisplayName,
		PhotoURL:      resp.PhotoURL,
		TokenProvider: provider,
	}

	c.mu.Lock()
	c.principal = principal
	c.idToken = resp.IDToken
	c.refresh = resp.RefreshToken
	c.expiresAt = time.Now().Add(parseExpiresIn(resp.ExpiresIn))
	c.emitLocked(petsera.SessionEvent{Principal: principal})
	c.mu.Unlock()

	return principal
}

// emitLocked pushes an observer event without blocking; a full buffer drops
// the oldest pending event so the feed always converges on the latest state.
func (c *Client) emitLocked(evt petsera.SessionEvent) {
	for {
		select {
		case c.events <- evt:
			return
		default:
			select {
			case <-c.events:
				c.logger.Warn("identity event buffer full, dropping oldest event")
			default:
			}
		}
	}
}

func (c *Client) accountsURL(action string) string {
	return fmt.Sprintf("%s/accounts:%s?key=%s", c.config.BaseURL, action, url.QueryEscape(c.config.APIKey))
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "encoding identity request failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "identity request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "identity request failed")
	}

	if resp.StatusCode != http.StatusOK {
		return apiError(endpoint, resp.StatusCode, body)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "invalid identity response")
		}
	}

	return nil
}

type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// apiError maps the service's error vocabulary onto the shared error values.
// Credential mistakes become ErrInvalidCredentials so callers can recover
// inline; everything else keeps the raw message for the logs.
func apiError(operation string, status int, body []byte) error {
	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)
	message := parsed.Error.Message

	switch {
	case strings.HasPrefix(message, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(message, "INVALID_PASSWORD"),
		strings.HasPrefix(message, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(message, "INVALID_EMAIL"):
		return petsera.ErrInvalidCredentials
	case strings.HasPrefix(message, "EMAIL_EXISTS"):
		return errors.New("email already registered", errors.CategoryConflict).
			WithCode(errors.CodeConflict)
	case strings.HasPrefix(message, "USER_DISABLED"):
		return errors.New("account disabled", errors.CategoryAuth).
			WithCode(errors.CodeForbidden)
	case strings.HasPrefix(message, "TOO_MANY_ATTEMPTS"):
		return errors.New("too many attempts, try again later", errors.CategoryOperation).
			WithCode(http.StatusTooManyRequests)
	}

	if message == "" {
		message = fmt.Sprintf("identity request failed with status %d", status)
	}

	return errors.New(message, errors.CategoryOperation).
		WithCode(status).
		WithMetadata(map[string]any{"operation": operation})
}

func parseExpiresIn(expiresIn string) time.Duration {
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		return time.Hour
	}
	return time.Duration(seconds) * time.Second
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
