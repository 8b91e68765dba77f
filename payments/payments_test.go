package payments_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petsera/go-petsera/backend"
	"github.com/petsera/go-petsera/payments"
)

type fakeMinter struct {
	secret string
	err    error
	calls  int
}

func (f *fakeMinter) CreatePaymentIntent(ctx context.Context, amountCents int64) (string, error) {
	f.calls++
	return f.secret, f.err
}

type fakeRecorder struct {
	recorded []backend.Donation
}

func (f *fakeRecorder) RecordDonation(ctx context.Context, donation backend.Donation) error {
	f.recorded = append(f.recorded, donation)
	return nil
}

func validIntent() payments.DonationIntent {
	return payments.DonationIntent{
		CampaignID:      "c1",
		PetName:         "Mittens",
		AmountCents:     2500,
		DonorEmail:      "alice@example.com",
		PaymentMethodID: "pm_123",
	}
}

func TestDonateValidation(t *testing.T) {
	minter := &fakeMinter{secret: "pi_123_secret_456"}
	recorder := &fakeRecorder{}
	processor := payments.New(payments.Config{}, minter, recorder)

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		intent := validIntent()
		intent.AmountCents = 0

		err := processor.Donate(context.Background(), intent)
		require.Error(t, err)
		assert.Zero(t, minter.calls)
	})

	t.Run("rejects missing campaign", func(t *testing.T) {
		intent := validIntent()
		intent.CampaignID = ""

		err := processor.Donate(context.Background(), intent)
		require.Error(t, err)
		assert.Zero(t, minter.calls)
	})

	t.Run("rejects missing payment method", func(t *testing.T) {
		intent := validIntent()
		intent.PaymentMethodID = ""

		err := processor.Donate(context.Background(), intent)
		require.Error(t, err)
		assert.Zero(t, minter.calls)
	})
}

func TestDonateMinterFailurePropagates(t *testing.T) {
	minter := &fakeMinter{err: assert.AnError}
	recorder := &fakeRecorder{}
	processor := payments.New(payments.Config{}, minter, recorder)

	err := processor.Donate(context.Background(), validIntent())
	require.Error(t, err)
	assert.Empty(t, recorder.recorded)
}

func TestDonateRejectsMalformedClientSecret(t *testing.T) {
	minter := &fakeMinter{secret: "garbage-without-marker"}
	recorder := &fakeRecorder{}
	processor := payments.New(payments.Config{}, minter, recorder)

	err := processor.Donate(context.Background(), validIntent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client secret")
	// nothing may be recorded before the charge confirms
	assert.Empty(t, recorder.recorded)
}
