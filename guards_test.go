package petsera_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	petsera "github.com/petsera/go-petsera"
)

func newTestGuard() *petsera.Guard {
	return petsera.NewGuard(petsera.DefaultConfig())
}

func TestGuardAuthenticated(t *testing.T) {
	guard := newTestGuard()

	t.Run("loading session is pending, never a redirect", func(t *testing.T) {
		decision := guard.Authenticated(petsera.Session{Loading: true}, "/dashboard")

		assert.True(t, decision.Pending())
		assert.Empty(t, decision.RedirectTo)
	})

	t.Run("anonymous session is denied with return path", func(t *testing.T) {
		decision := guard.Authenticated(petsera.Session{Loading: false}, "/dashboard")

		assert.Equal(t, petsera.GuardDenied, decision.State)
		assert.Equal(t, "/login", decision.RedirectTo)
		assert.Equal(t, "/dashboard", decision.ReturnTo)
	})

	t.Run("signed-in principal is granted", func(t *testing.T) {
		session := petsera.Session{Principal: &petsera.Principal{ID: "u1"}}
		decision := guard.Authenticated(session, "/dashboard")

		assert.True(t, decision.Granted())
	})
}

func TestGuardAdmin(t *testing.T) {
	guard := newTestGuard()
	signedIn := petsera.Session{Principal: &petsera.Principal{ID: "u1", Email: "a@example.com"}}

	t.Run("loading session is pending", func(t *testing.T) {
		decision := guard.Admin(petsera.Session{Loading: true}, petsera.RoleAdmin, "/dashboard/admin")
		assert.True(t, decision.Pending())
	})

	t.Run("anonymous session is denied toward login", func(t *testing.T) {
		decision := guard.Admin(petsera.Session{}, petsera.RoleAdmin, "/dashboard/admin")

		assert.Equal(t, petsera.GuardDenied, decision.State)
		assert.Equal(t, "/login", decision.RedirectTo)
		assert.Equal(t, "/dashboard/admin", decision.ReturnTo)
	})

	t.Run("unresolved role is pending, not denied", func(t *testing.T) {
		decision := guard.Admin(signedIn, petsera.RoleUnresolved, "/dashboard/admin")
		assert.True(t, decision.Pending())
	})

	t.Run("non-admin is denied toward access denied with no return path", func(t *testing.T) {
		decision := guard.Admin(signedIn, petsera.RoleUser, "/dashboard/admin")

		assert.Equal(t, petsera.GuardDenied, decision.State)
		assert.Equal(t, "/access-denied", decision.RedirectTo)
		assert.Empty(t, decision.ReturnTo)
	})

	t.Run("admin is granted", func(t *testing.T) {
		decision := guard.Admin(signedIn, petsera.RoleAdmin, "/dashboard/admin")
		assert.True(t, decision.Granted())
	})
}

func TestParseRole(t *testing.T) {
	role, ok := petsera.ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, petsera.RoleAdmin, role)

	role, ok = petsera.ParseRole("user")
	assert.True(t, ok)
	assert.Equal(t, petsera.RoleUser, role)

	// unknown values never mint elevated access
	role, ok = petsera.ParseRole("superadmin")
	assert.False(t, ok)
	assert.Equal(t, petsera.RoleUser, role)

	role, ok = petsera.ParseRole("")
	assert.False(t, ok)
	assert.Equal(t, petsera.RoleUser, role)
}

func TestRoleResolved(t *testing.T) {
	assert.False(t, petsera.RoleUnresolved.Resolved())
	assert.False(t, petsera.Role("").Resolved())
	assert.True(t, petsera.RoleUser.Resolved())
	assert.True(t, petsera.RoleAdmin.Resolved())

	assert.True(t, petsera.RoleAdmin.IsAdmin())
	assert.False(t, petsera.RoleUser.IsAdmin())
}
