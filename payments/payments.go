// Package payments confirms donation card payments through Stripe and records
// the completed contribution with the backend.
package payments

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"

	petsera "github.com/petsera/go-petsera"
	"github.com/petsera/go-petsera/backend"
)

// IntentMinter creates a payment intent for an amount and returns its client
// secret. The backend client implements it.
type IntentMinter interface {
	CreatePaymentIntent(ctx context.Context, amountCents int64) (string, error)
}

// DonationRecorder persists a completed contribution.
type DonationRecorder interface {
	RecordDonation(ctx context.Context, donation backend.Donation) error
}

// Config holds payment processing configuration.
type Config struct {
	// StripeKey is the publishable-side secret used for confirmation calls.
	StripeKey string
	Logger    petsera.Logger
}

// Processor drives the donate flow: mint an intent, confirm the card, record
// the donation.
type Processor struct {
	minter   IntentMinter
	recorder DonationRecorder
	logger   petsera.Logger
}

// New creates a processor. It sets the package-level Stripe key once.
func New(cfg Config, minter IntentMinter, recorder DonationRecorder) *Processor {
	if cfg.StripeKey != "" {
		stripe.Key = strings.TrimSpace(cfg.StripeKey)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Processor{
		minter:   minter,
		recorder: recorder,
		logger:   logger,
	}
}

// DonationIntent is the request to contribute to a campaign.
type DonationIntent struct {
	CampaignID string
	PetName    string
	ImageURL   string
	// AmountCents is the contribution in the currency's smallest unit.
	AmountCents int64
	DonorEmail  string
	// PaymentMethodID references the tokenized card collected client-side.
	PaymentMethodID string
}

// Donate runs the full flow. The donation is only recorded after the charge
// succeeds; a failure between confirm and record logs loudly since money has
// moved.
func (p *Processor) Donate(ctx context.Context, intent DonationIntent) error {
	if intent.AmountCents <= 0 {
		return errors.New("donation amount must be positive", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}
	if intent.CampaignID == "" || intent.PaymentMethodID == "" {
		return errors.New("missing campaign or payment method", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	clientSecret, err := p.minter.CreatePaymentIntent(ctx, intent.AmountCents)
	if err != nil {
		return err
	}

	intentID := intentIDFromClientSecret(clientSecret)
	if intentID == "" {
		return errors.New("malformed payment intent client secret", errors.CategoryOperation)
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(intent.PaymentMethodID),
	}
	params.Context = ctx

	confirmed, err := paymentintent.Confirm(intentID, params)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "card confirmation failed")
	}

	if confirmed.Status != stripe.PaymentIntentStatusSucceeded {
		return errors.New("payment did not complete", errors.CategoryOperation).
			WithMetadata(map[string]any{"status": string(confirmed.Status)})
	}

	donation := backend.Donation{
		CampaignID: intent.CampaignID,
		PetName:    intent.PetName,
		ImageURL:   intent.ImageURL,
		Amount:     float64(intent.AmountCents) / 100,
		Donor:      intent.DonorEmail,
	}

	if err := p.recorder.RecordDonation(ctx, donation); err != nil {
		p.logger.Error("Charge %s succeeded but recording the donation failed: %s", confirmed.ID, err)
		return errors.Wrap(err, errors.CategoryOperation, "payment succeeded but donation was not recorded").
			WithMetadata(map[string]any{"payment_intent": confirmed.ID})
	}

	return nil
}

// intentIDFromClientSecret extracts "pi_..." from "pi_..._secret_...".
func intentIDFromClientSecret(clientSecret string) string {
	idx := strings.Index(clientSecret, "_secret")
	if idx <= 0 {
		return ""
	}
	return clientSecret[:idx]
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
