package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"

	petsera "github.com/petsera/go-petsera"
)

// User is the backend user document.
type User struct {
	ID        string `json:"_id,omitempty"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	PhotoURL  string `json:"photoURL,omitempty"`
	Role      string `json:"role"`
	Banned    bool   `json:"banned,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	LastLogIn string `json:"last_log_in,omitempty"`
}

// EnsureUser implements petsera.UserRegistrar. The record ID is derived from
// the email so retries and racing social logins write the same document; the
// server answers 409 when it already exists, which counts as success here.
func (c *Client) EnsureUser(ctx context.Context, record petsera.UserRecord) error {
	user := User{
		Email:     record.Email,
		Name:      record.Name,
		PhotoURL:  record.PhotoURL,
		Role:      record.Role,
		CreatedAt: record.CreatedAt.Format(time.RFC3339),
		LastLogIn: record.LastLogIn.Format(time.RFC3339),
	}
	if id, err := hashid.NewUUID(record.Email); err == nil {
		user.ID = id.String()
	}

	err := c.do(ctx, http.MethodPost, "/users", user, nil)
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Code == http.StatusConflict {
		c.logger.Debug("user %s already registered, treating as success", record.Email)
		return nil
	}

	return err
}

// UserRole implements petsera.RoleLookup.
func (c *Client) UserRole(ctx context.Context, email string) (petsera.Role, error) {
	var resp struct {
		Role string `json:"role"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+pathEscape(email)+"/role", nil, &resp); err != nil {
		return petsera.RoleUnresolved, err
	}

	role, _ := petsera.ParseRole(resp.Role)
	return role, nil
}

// IsAdmin asks the dedicated admin-check endpoint.
func (c *Client) IsAdmin(ctx context.Context, email string) (bool, error) {
	var resp struct {
		Admin bool `json:"isAdmin"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/admin/"+pathEscape(email), nil, &resp); err != nil {
		return false, err
	}
	return resp.Admin, nil
}

// ListUsers returns every user. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// PromoteAdmin grants the admin role to a user by record ID. Admin only.
func (c *Client) PromoteAdmin(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/users/admin/"+pathEscape(id), nil, nil)
}

// BanUser flags a user as banned by record ID. Admin only.
func (c *Client) BanUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/users/ban/"+pathEscape(id), nil, nil)
}
