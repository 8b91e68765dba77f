package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	petsera "github.com/petsera/go-petsera"
	"github.com/petsera/go-petsera/identity"
)

type fakeIdentityService struct {
	t *testing.T

	signUpCalls  int
	signInCalls  int
	refreshCalls int

	signInError string
}

func (f *fakeIdentityService) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/accounts:signUp", func(w http.ResponseWriter, r *http.Request) {
		f.signUpCalls++
		writeAuthResponse(w, "new-user", "alice@example.com")
	})

	mux.HandleFunc("/accounts:signInWithPassword", func(w http.ResponseWriter, r *http.Request) {
		f.signInCalls++
		if f.signInError != "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": f.signInError},
			})
			return
		}
		writeAuthResponse(w, "u1", "alice@example.com")
	})

	mux.HandleFunc("/accounts:signInWithIdp", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			PostBody string `json:"postBody"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		if !strings.Contains(payload.PostBody, "providerId=google.com") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeAuthResponse(w, "social-user", "alice@example.com")
	})

	mux.HandleFunc("/accounts:update", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"id_token":      "refreshed-token",
			"refresh_token": "refresh-2",
			"expires_in":    "3600",
		})
	})

	return mux
}

func writeAuthResponse(w http.ResponseWriter, id, email string) {
	json.NewEncoder(w).Encode(map[string]any{
		"localId":      id,
		"email":        email,
		"idToken":      "id-token-1",
		"refreshToken": "refresh-1",
		"expiresIn":    "3600",
	})
}

func newTestClient(t *testing.T, fake *fakeIdentityService) *identity.Client {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	return identity.New(identity.Config{
		APIKey:         "test-key",
		BaseURL:        server.URL,
		SecureTokenURL: server.URL,
	})
}

func nextEvent(t *testing.T, ch <-chan petsera.SessionEvent) petsera.SessionEvent {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session event")
		return petsera.SessionEvent{}
	}
}

func TestCreateUserEmitsSignedInEvent(t *testing.T) {
	fake := &fakeIdentityService{t: t}
	client := newTestClient(t, fake)

	principal, err := client.CreateUser(context.Background(), "alice@example.com", "secret12")
	require.NoError(t, err)

	assert.Equal(t, "new-user", principal.ID)
	assert.Equal(t, "password", principal.TokenProvider)
	assert.Equal(t, 1, fake.signUpCalls)

	evt := nextEvent(t, client.SessionChanges())
	require.NotNil(t, evt.Principal)
	assert.Equal(t, "new-user", evt.Principal.ID)
}

func TestSignInWithPassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fake := &fakeIdentityService{t: t}
		client := newTestClient(t, fake)

		principal, err := client.SignInWithPassword(context.Background(), "alice@example.com", "secret12")
		require.NoError(t, err)
		assert.Equal(t, "u1", principal.ID)
	})

	t.Run("wrong password maps to invalid credentials", func(t *testing.T) {
		fake := &fakeIdentityService{t: t, signInError: "INVALID_PASSWORD"}
		client := newTestClient(t, fake)

		_, err := client.SignInWithPassword(context.Background(), "alice@example.com", "wrong")
		require.Error(t, err)
		assert.True(t, petsera.IsInvalidCredentials(err))
	})

	t.Run("unknown account maps to invalid credentials", func(t *testing.T) {
		fake := &fakeIdentityService{t: t, signInError: "EMAIL_NOT_FOUND"}
		client := newTestClient(t, fake)

		_, err := client.SignInWithPassword(context.Background(), "nobody@example.com", "secret12")
		require.Error(t, err)
		assert.True(t, petsera.IsInvalidCredentials(err))
	})
}

func TestSignInWithIdP(t *testing.T) {
	fake := &fakeIdentityService{t: t}
	client := newTestClient(t, fake)

	principal, err := client.SignInWithIdP(context.Background(), "google.com", "oauth-access-token")
	require.NoError(t, err)

	assert.Equal(t, "social-user", principal.ID)
	assert.Equal(t, "google.com", principal.TokenProvider)
}

func TestIDToken(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		client := newTestClient(t, &fakeIdentityService{t: t})
		_, err := client.IDToken(context.Background(), false)
		assert.Error(t, err)
	})

	t.Run("serves cached token until forced", func(t *testing.T) {
		fake := &fakeIdentityService{t: t}
		client := newTestClient(t, fake)

		_, err := client.SignInWithPassword(context.Background(), "alice@example.com", "secret12")
		require.NoError(t, err)

		token, err := client.IDToken(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, "id-token-1", token)
		assert.Equal(t, 0, fake.refreshCalls)

		token, err = client.IDToken(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, "refreshed-token", token)
		assert.Equal(t, 1, fake.refreshCalls)
	})
}

func TestUpdateProfileEmitsUpdatedPrincipal(t *testing.T) {
	fake := &fakeIdentityService{t: t}
	client := newTestClient(t, fake)

	_, err := client.SignInWithPassword(context.Background(), "alice@example.com", "secret12")
	require.NoError(t, err)
	nextEvent(t, client.SessionChanges()) // the sign-in event

	err = client.UpdateProfile(context.Background(), petsera.Profile{DisplayName: "Alice"})
	require.NoError(t, err)

	evt := nextEvent(t, client.SessionChanges())
	require.NotNil(t, evt.Principal)
	assert.Equal(t, "Alice", evt.Principal.DisplayName)
}

func TestSignOutEmitsNilPrincipal(t *testing.T) {
	fake := &fakeIdentityService{t: t}
	client := newTestClient(t, fake)

	_, err := client.SignInWithPassword(context.Background(), "alice@example.com", "secret12")
	require.NoError(t, err)
	nextEvent(t, client.SessionChanges())

	require.NoError(t, client.SignOut(context.Background()))

	evt := nextEvent(t, client.SessionChanges())
	assert.Nil(t, evt.Principal)

	_, err = client.IDToken(context.Background(), false)
	assert.Error(t, err)
}
