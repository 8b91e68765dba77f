package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	petsera "github.com/petsera/go-petsera"
	"github.com/petsera/go-petsera/backend"
)

func newTestBackend(t *testing.T, handler http.Handler) *backend.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := backend.New(backend.Config{BaseURL: server.URL})
	require.NoError(t, err)
	return client
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := backend.New(backend.Config{})
	assert.Error(t, err)
}

func TestExchangeToken(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/jwt", func(w http.ResponseWriter, r *http.Request) {
			var payload struct {
				IDToken string `json:"idToken"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "provider-id-token", payload.IDToken)
			json.NewEncoder(w).Encode(map[string]string{"token": "session-jwt"})
		})
		client := newTestBackend(t, mux)

		token, err := client.ExchangeToken(context.Background(), "provider-id-token")
		require.NoError(t, err)
		assert.Equal(t, "session-jwt", token)
	})

	t.Run("empty token in response is a failure", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/jwt", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{})
		})
		client := newTestBackend(t, mux)

		_, err := client.ExchangeToken(context.Background(), "provider-id-token")
		require.Error(t, err)
		assert.True(t, petsera.IsExchangeFailed(err))
	})

	t.Run("unreachable backend is a network error", func(t *testing.T) {
		client, err := backend.New(backend.Config{BaseURL: "http://127.0.0.1:1"})
		require.NoError(t, err)

		_, err = client.ExchangeToken(context.Background(), "provider-id-token")
		require.Error(t, err)
		assert.True(t, petsera.IsNetworkError(err))
	})
}

func TestEnsureUser(t *testing.T) {
	record := petsera.UserRecord{
		Email:     "alice@example.com",
		Name:      "Alice",
		Role:      "user",
		CreatedAt: time.Now().UTC(),
		LastLogIn: time.Now().UTC(),
	}

	t.Run("creates the user document", func(t *testing.T) {
		var got backend.User
		mux := http.NewServeMux()
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
		})
		client := newTestBackend(t, mux)

		require.NoError(t, client.EnsureUser(context.Background(), record))
		assert.Equal(t, "alice@example.com", got.Email)
		// the ID is derived from the email so retries hit the same document
		assert.NotEmpty(t, got.ID)
	})

	t.Run("conflict counts as success", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"message": "user already exists"})
		})
		client := newTestBackend(t, mux)

		assert.NoError(t, client.EnsureUser(context.Background(), record))
	})

	t.Run("derived ID is deterministic", func(t *testing.T) {
		ids := make([]string, 0, 2)
		mux := http.NewServeMux()
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			var got backend.User
			json.NewDecoder(r.Body).Decode(&got)
			ids = append(ids, got.ID)
			w.WriteHeader(http.StatusCreated)
		})
		client := newTestBackend(t, mux)

		require.NoError(t, client.EnsureUser(context.Background(), record))
		require.NoError(t, client.EnsureUser(context.Background(), record))
		assert.Equal(t, ids[0], ids[1])
	})

	t.Run("other failures surface", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		client := newTestBackend(t, mux)

		assert.Error(t, client.EnsureUser(context.Background(), record))
	})
}

func TestUserRole(t *testing.T) {
	t.Run("known role", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/users/alice@example.com/role", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"role": "admin"})
		})
		client := newTestBackend(t, mux)

		role, err := client.UserRole(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, petsera.RoleAdmin, role)
	})

	t.Run("unknown role downgrades to user", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/users/alice@example.com/role", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"role": "owner"})
		})
		client := newTestBackend(t, mux)

		role, err := client.UserRole(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, petsera.RoleUser, role)
	})
}

func TestIsAdmin(t *testing.T) {
	t.Run("reads the isAdmin flag", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/users/admin/alice@example.com", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			json.NewEncoder(w).Encode(map[string]bool{"isAdmin": true})
		})
		client := newTestBackend(t, mux)

		admin, err := client.IsAdmin(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.True(t, admin)
	})

	t.Run("non-admin", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/users/admin/bob@example.com", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]bool{"isAdmin": false})
		})
		client := newTestBackend(t, mux)

		admin, err := client.IsAdmin(context.Background(), "bob@example.com")
		require.NoError(t, err)
		assert.False(t, admin)
	})
}

func TestListPetsFilters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pets", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "cat", q.Get("category"))
		assert.Equal(t, "tabby", q.Get("search"))
		assert.Equal(t, "2", q.Get("page"))
		json.NewEncoder(w).Encode([]backend.Pet{{ID: "p1", Name: "Mittens", Category: "cat"}})
	})
	client := newTestBackend(t, mux)

	pets, err := client.ListPets(context.Background(), backend.PetFilter{
		Category: "cat",
		Search:   "tabby",
		Page:     2,
	})
	require.NoError(t, err)
	require.Len(t, pets, 1)
	assert.Equal(t, "Mittens", pets[0].Name)
}

func TestRequestAdoptionValidates(t *testing.T) {
	called := false
	mux := http.NewServeMux()
	mux.HandleFunc("/adoptions", func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	})
	client := newTestBackend(t, mux)

	err := client.RequestAdoption(context.Background(), backend.AdoptionRequest{
		PetID: "p1",
		Email: "not-an-email",
		Name:  "Alice",
		Phone: "+1 650 253 0000",
	})
	require.Error(t, err)
	assert.False(t, called)

	err = client.RequestAdoption(context.Background(), backend.AdoptionRequest{
		PetID:   "p1",
		Email:   "alice@example.com",
		Name:    "Alice",
		Phone:   "+1 650 253 0000",
		Address: "1 Main St",
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestCreatePaymentIntent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/create-payment-intent", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Amount int64 `json:"amount"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		assert.Equal(t, int64(2500), payload.Amount)
		json.NewEncoder(w).Encode(map[string]string{"clientSecret": "pi_123_secret_456"})
	})
	client := newTestBackend(t, mux)

	secret, err := client.CreatePaymentIntent(context.Background(), 2500)
	require.NoError(t, err)
	assert.Equal(t, "pi_123_secret_456", secret)
}

func TestErrorCategories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pets/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "no such pet"})
	})
	client := newTestBackend(t, mux)

	_, err := client.GetPet(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such pet")
}
