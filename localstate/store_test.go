package localstate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petsera/go-petsera/localstate"
)

func newTestStore(t *testing.T) *localstate.Store {
	t.Helper()
	store, err := localstate.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	value, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.Set(ctx, "key", "value-1"))

	value, err = store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value-1", value)

	// upsert replaces
	require.NoError(t, store.Set(ctx, "key", "value-2"))
	value, err = store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value-2", value)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "key", "value"))
	require.NoError(t, store.Delete(ctx, "key"))

	value, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Empty(t, value)

	// deleting a missing key is not an error
	assert.NoError(t, store.Delete(ctx, "never-existed"))
}

func TestSessionToken(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	token, err := store.SessionToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.SetSessionToken(ctx, "session-jwt"))

	token, err = store.SessionToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session-jwt", token)

	// an empty token removes the row, sign-out leaves no trace
	require.NoError(t, store.SetSessionToken(ctx, ""))
	token, err = store.SessionToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTheme(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	theme, err := store.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "light", theme)

	require.NoError(t, store.SetTheme(ctx, "dark"))

	theme, err = store.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", theme)
}
