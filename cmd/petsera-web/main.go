package main

import (
	"context"
	"fmt"
	"os"

	petsera "github.com/petsera/go-petsera"
	"github.com/petsera/go-petsera/backend"
	"github.com/petsera/go-petsera/identity"
	"github.com/petsera/go-petsera/localstate"
	"github.com/petsera/go-petsera/payments"
	"github.com/petsera/go-petsera/social"
	"github.com/petsera/go-petsera/social/providers/github"
	"github.com/petsera/go-petsera/social/providers/google"
	"github.com/petsera/go-petsera/webapp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "petsera-web:", err)
		os.Exit(1)
	}
}

func run() error {
	logger := petsera.NewLogger()

	cfg := petsera.LoadConfigFromEnv()
	if cfg.SigningKey == "" {
		return fmt.Errorf("PETSERA_SIGNING_KEY is required")
	}

	apiKey := os.Getenv("PETSERA_IDENTITY_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("PETSERA_IDENTITY_API_KEY is required")
	}

	backendURL := envOr("PETSERA_BACKEND_URL", "http://localhost:5000")
	callbackBase := envOr("PETSERA_CALLBACK_BASE", "http://localhost:3000")

	idp := identity.New(identity.Config{
		APIKey: apiKey,
		Logger: logger,
	})

	state, err := localstate.Open(context.Background(), envOr("PETSERA_STATE_PATH", "petsera.db"))
	if err != nil {
		return err
	}
	defer state.Close()

	flowOpts := []social.FlowOption{}
	if id := os.Getenv("PETSERA_GOOGLE_CLIENT_ID"); id != "" {
		flowOpts = append(flowOpts, social.WithProvider(google.New(google.Config{
			ClientID:     id,
			ClientSecret: os.Getenv("PETSERA_GOOGLE_CLIENT_SECRET"),
			CallbackURL:  callbackBase + "/auth/google.com/callback",
		})))
	}
	if id := os.Getenv("PETSERA_GITHUB_CLIENT_ID"); id != "" {
		flowOpts = append(flowOpts, social.WithProvider(github.New(github.Config{
			ClientID:     id,
			ClientSecret: os.Getenv("PETSERA_GITHUB_CLIENT_SECRET"),
			CallbackURL:  callbackBase + "/auth/github.com/callback",
		})))
	}

	flow := social.NewFlow(social.FlowConfig{
		DefaultRedirectURL: "/",
		StateEncryptionKey: []byte(os.Getenv("PETSERA_STATE_ENCRYPTION_KEY")),
		StateHMACKey:       []byte(os.Getenv("PETSERA_STATE_HMAC_KEY")),
	}, flowOpts...)

	app, err := webapp.New(webapp.Options{
		Config:   cfg,
		Identity: idp,
		Backend: backend.Config{
			BaseURL: backendURL,
		},
		Flow: flow,
		Payments: payments.Config{
			StripeKey: os.Getenv("STRIPE_SECRET_KEY"),
		},
		State:    state,
		Logger:   logger,
		ViewsDir: envOr("PETSERA_VIEWS_DIR", "./views"),
	})
	if err != nil {
		return err
	}
	defer app.Close()

	addr := envOr("PETSERA_ADDR", ":3000")
	logger.Info("petsera web listening on %s", addr)

	return app.Serve(addr)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
