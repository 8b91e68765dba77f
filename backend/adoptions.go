package backend

import (
	"context"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"

	petsera "github.com/petsera/go-petsera"
)

// AdoptionRequest is an application to adopt a listed pet.
type AdoptionRequest struct {
	PetID     string `json:"petId"`
	PetName   string `json:"petName,omitempty"`
	ImageURL  string `json:"image,omitempty"`
	Email     string `json:"email"`
	Name      string `json:"userName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Validate will validate the payload
func (r AdoptionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PetID, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.Required, validation.By(petsera.ValidatePhoneNumber)),
		validation.Field(&r.Address, validation.Required, validation.Length(1, 500)),
	)
}

// RequestAdoption submits an adoption application. Authenticated.
func (c *Client) RequestAdoption(ctx context.Context, request AdoptionRequest) error {
	if err := errors.ValidateWithOzzo(request.Validate, "invalid adoption request"); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/adoptions", request, nil)
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	Users     int     `json:"users"`
	Pets      int     `json:"pets"`
	Adopted   int     `json:"adopted"`
	Campaigns int     `json:"campaigns"`
	Donated   float64 `json:"totalDonations"`
}

// GetDashboardStats returns aggregate counts. Admin only.
func (c *Client) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.do(ctx, http.MethodGet, "/dashboard-stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CreatePaymentIntent asks the backend to mint a payment intent for the given
// amount (in cents) and returns the client secret the payments flow confirms.
func (c *Client) CreatePaymentIntent(ctx context.Context, amountCents int64) (string, error) {
	var resp struct {
		ClientSecret string `json:"clientSecret"`
	}
	err := c.do(ctx, http.MethodPost, "/create-payment-intent", map[string]any{
		"amount": amountCents,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ClientSecret == "" {
		return "", errors.New("payment intent response carried no client secret", errors.CategoryOperation)
	}
	return resp.ClientSecret, nil
}
