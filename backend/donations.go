package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// DonationCampaign is a fundraising campaign for a pet.
type DonationCampaign struct {
	ID            string  `json:"_id,omitempty"`
	PetName       string  `json:"petName"`
	ImageURL      string  `json:"image,omitempty"`
	MaxAmount     float64 `json:"maxDonation"`
	DonatedAmount float64 `json:"totalDonation"`
	LastDate      string  `json:"lastDate,omitempty"`
	Description   string  `json:"shortInfo,omitempty"`
	LongDesc      string  `json:"longDescription,omitempty"`
	Paused        bool    `json:"paused"`
	OwnerEmail    string  `json:"email,omitempty"`
	CreatedAt     string  `json:"createdAt,omitempty"`
}

// Donation is a single contribution against a campaign.
type Donation struct {
	ID         string  `json:"_id,omitempty"`
	CampaignID string  `json:"campaignId"`
	PetName    string  `json:"petName,omitempty"`
	ImageURL   string  `json:"image,omitempty"`
	Amount     float64 `json:"amount"`
	Donor      string  `json:"email"`
	Refunded   bool    `json:"refunded,omitempty"`
	CreatedAt  string  `json:"createdAt,omitempty"`
}

// ListCampaigns returns a page of campaigns, newest first.
func (c *Client) ListCampaigns(ctx context.Context, page, limit int) ([]DonationCampaign, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/donations"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var campaigns []DonationCampaign
	if err := c.do(ctx, http.MethodGet, path, nil, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// AllCampaigns returns every campaign. Admin only.
func (c *Client) AllCampaigns(ctx context.Context) ([]DonationCampaign, error) {
	var campaigns []DonationCampaign
	if err := c.do(ctx, http.MethodGet, "/donations/all", nil, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// MyCampaigns returns campaigns created by the signed-in user.
func (c *Client) MyCampaigns(ctx context.Context) ([]DonationCampaign, error) {
	var campaigns []DonationCampaign
	if err := c.do(ctx, http.MethodGet, "/donations/users", nil, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// MyDonations returns contributions made by the signed-in user.
func (c *Client) MyDonations(ctx context.Context) ([]Donation, error) {
	var donations []Donation
	if err := c.do(ctx, http.MethodGet, "/donations/mine", nil, &donations); err != nil {
		return nil, err
	}
	return donations, nil
}

// RecommendedCampaigns returns active campaigns to suggest alongside one being
// viewed.
func (c *Client) RecommendedCampaigns(ctx context.Context) ([]DonationCampaign, error) {
	var campaigns []DonationCampaign
	if err := c.do(ctx, http.MethodGet, "/donations/recommended", nil, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// GetCampaign fetches one campaign by ID.
func (c *Client) GetCampaign(ctx context.Context, id string) (*DonationCampaign, error) {
	var campaign DonationCampaign
	if err := c.do(ctx, http.MethodGet, "/donations/"+pathEscape(id), nil, &campaign); err != nil {
		return nil, err
	}
	return &campaign, nil
}

// CreateCampaign starts a new campaign. Authenticated.
func (c *Client) CreateCampaign(ctx context.Context, campaign DonationCampaign) error {
	return c.do(ctx, http.MethodPost, "/donations", campaign, nil)
}

// UpdateCampaign replaces a campaign. Owner or admin.
func (c *Client) UpdateCampaign(ctx context.Context, id string, campaign DonationCampaign) error {
	return c.do(ctx, http.MethodPut, "/donations/"+pathEscape(id), campaign, nil)
}

// DeleteCampaign removes a campaign. Admin only.
func (c *Client) DeleteCampaign(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/donations/"+pathEscape(id), nil, nil)
}

// SetCampaignPaused toggles whether a campaign accepts new donations.
func (c *Client) SetCampaignPaused(ctx context.Context, id string, paused bool) error {
	return c.do(ctx, http.MethodPatch, "/donations/"+pathEscape(id)+"/pause", map[string]any{
		"paused": paused,
	}, nil)
}

// RefundDonation reverses a contribution and decrements the campaign total.
func (c *Client) RefundDonation(ctx context.Context, donationID string) error {
	return c.do(ctx, http.MethodPatch, "/donations/refund/"+pathEscape(donationID), nil, nil)
}

// RecordDonation persists a completed contribution. Called by the payments
// flow after the charge confirms.
func (c *Client) RecordDonation(ctx context.Context, donation Donation) error {
	return c.do(ctx, http.MethodPost, "/donations/donate", donation, nil)
}
