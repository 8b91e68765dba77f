// Package backend is the REST client for the Petsera API server. It
// implements the token exchange, user persistence and role lookup contracts
// from the root package, plus the pets, donations and adoptions resources.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"

	petsera "github.com/petsera/go-petsera"
)

// Config holds backend client configuration.
type Config struct {
	BaseURL string

	// HTTPClient should wrap the petsera.Transport so requests carry the
	// session credential. A plain client works for the unauthenticated
	// endpoints only.
	HTTPClient *http.Client
	Logger     petsera.Logger
}

// Client is the API client. Method groups live in sibling files: users.go,
// pets.go, donations.go, adoptions.go.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     petsera.Logger
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
		logger:     logger,
	}, nil
}

// ExchangeToken implements petsera.TokenExchanger: it trades a provider ID
// token for the backend session credential.
func (c *Client) ExchangeToken(ctx context.Context, idToken string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/jwt", map[string]any{"idToken": idToken}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("exchange response carried no token", errors.CategoryAuth).
			WithTextCode(petsera.TextCodeExchangeFailed).
			WithCode(errors.CodeUnauthorized)
	}
	return resp.Token, nil
}

// Logout implements petsera.TokenExchanger: it invalidates the backend-side
// session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// do runs one API request. Transport failures are classified as network
// errors; non-2xx responses keep the server's message and status.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "encoding request failed")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "backend request failed").
			WithTextCode(petsera.TextCodeNetworkUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "backend request failed").
			WithTextCode(petsera.TextCodeNetworkUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(method, path, resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "invalid backend response")
		}
	}

	return nil
}

type apiErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) apiError(method, path string, status int, body []byte) error {
	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)

	message := parsed.Message
	if message == "" {
		message = parsed.Error
	}
	if message == "" {
		message = fmt.Sprintf("backend %s %s failed with status %d", method, path, status)
	}

	category := errors.CategoryOperation
	switch status {
	case http.StatusUnauthorized:
		category = errors.CategoryAuth
	case http.StatusForbidden:
		category = errors.CategoryAuthz
	case http.StatusNotFound:
		category = errors.CategoryNotFound
	case http.StatusConflict:
		category = errors.CategoryConflict
	case http.StatusBadRequest:
		category = errors.CategoryBadInput
	}

	return errors.New(message, category).
		WithCode(status).
		WithMetadata(map[string]any{
			"method": method,
			"path":   path,
		})
}

func pathEscape(segment string) string {
	return url.PathEscape(segment)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
