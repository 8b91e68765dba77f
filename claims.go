package petsera

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the claim set carried by the backend session credential:
// the token minted by the exchange endpoint and attached to every authorized
// request. The middleware validates it and derives a Session from it.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	PhotoURL    string `json:"picture,omitempty"`
	Role        string `json:"role,omitempty"`
	// Provider records which identity provider vouched for the subject.
	Provider string `json:"provider,omitempty"`
}

// UserID returns the subject identifier.
func (c *SessionClaims) UserID() string {
	return c.Subject
}

// UserEmail returns the email claim.
func (c *SessionClaims) UserEmail() string {
	return c.Email
}

// UserRole returns the parsed role claim. Unknown or missing roles come back
// as the least-privileged role.
func (c *SessionClaims) UserRole() Role {
	role, _ := ParseRole(c.Role)
	return role
}

// IsAdmin reports whether the role claim grants admin access.
func (c *SessionClaims) IsAdmin() bool {
	return c.UserRole().IsAdmin()
}

// Principal converts the claims into the shared principal shape.
func (c *SessionClaims) Principal() *Principal {
	return &Principal{
		ID:            c.Subject,
		Email:         c.Email,
		DisplayName:   c.DisplayName,
		PhotoURL:      c.PhotoURL,
		TokenProvider: c.Provider,
	}
}
