package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Pet is a listed animal.
type Pet struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"name"`
	Age         string `json:"age,omitempty"`
	Category    string `json:"category"`
	Location    string `json:"location,omitempty"`
	Description string `json:"shortDescription,omitempty"`
	LongDesc    string `json:"longDescription,omitempty"`
	ImageURL    string `json:"image,omitempty"`
	Adopted     bool   `json:"adopted"`
	OwnerEmail  string `json:"email,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// PetFilter narrows ListPets. Zero values are omitted from the query.
type PetFilter struct {
	Category string
	Search   string
	// OwnerEmail limits results to pets added by one user.
	OwnerEmail string
	Page       int
	Limit      int
}

// ListPets returns pets matching the filter, newest first.
func (c *Client) ListPets(ctx context.Context, filter PetFilter) ([]Pet, error) {
	q := url.Values{}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.OwnerEmail != "" {
		q.Set("email", filter.OwnerEmail)
	}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := "/pets"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var pets []Pet
	if err := c.do(ctx, http.MethodGet, path, nil, &pets); err != nil {
		return nil, err
	}
	return pets, nil
}

// GetPet fetches one pet by ID.
func (c *Client) GetPet(ctx context.Context, id string) (*Pet, error) {
	var pet Pet
	if err := c.do(ctx, http.MethodGet, "/pets/"+pathEscape(id), nil, &pet); err != nil {
		return nil, err
	}
	return &pet, nil
}

// CreatePet lists a new animal. Authenticated.
func (c *Client) CreatePet(ctx context.Context, pet Pet) error {
	return c.do(ctx, http.MethodPost, "/pets", pet, nil)
}

// UpdatePet replaces a listing. Owner or admin.
func (c *Client) UpdatePet(ctx context.Context, id string, pet Pet) error {
	return c.do(ctx, http.MethodPut, "/pets/"+pathEscape(id), pet, nil)
}

// DeletePet removes a listing. Owner or admin.
func (c *Client) DeletePet(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/pets/"+pathEscape(id), nil, nil)
}

// SetPetAdopted toggles the adopted flag.
func (c *Client) SetPetAdopted(ctx context.Context, id string, adopted bool) error {
	return c.do(ctx, http.MethodPatch, "/pets/"+pathEscape(id)+"/status", map[string]any{
		"adopted": adopted,
	}, nil)
}
