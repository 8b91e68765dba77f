package petsera

// Role is the backend-assigned authorization level for a principal's email.
type Role string

const (
	// RoleUnresolved is the sentinel for "not yet known". It is distinct from
	// every valid role so callers can tell a pending lookup from a regular
	// user.
	RoleUnresolved Role = "unresolved"
	// RoleUser is the least-privileged role and the fallback when a lookup
	// fails.
	RoleUser Role = "user"
	// RoleAdmin unlocks the admin dashboard.
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the backend's known roles. The
// unresolved sentinel is not a valid role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role grants admin access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Resolved reports whether the role is known, valid or not.
func (r Role) Resolved() bool {
	return r != RoleUnresolved && r != ""
}

// ParseRole safely parses a string into a Role. Unknown values parse to
// RoleUser so a misbehaving backend can never mint elevated access.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	if role.IsValid() {
		return role, true
	}
	return RoleUser, false
}

// AllRoles returns the known roles in order of privilege.
func AllRoles() []Role {
	return []Role{RoleUser, RoleAdmin}
}
