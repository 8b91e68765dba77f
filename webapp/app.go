// Package webapp is the server-rendered front end: public pages, auth forms,
// and the guarded user/admin dashboards, all thin handlers over the backend
// client.
package webapp

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-router"

	petsera "github.com/petsera/go-petsera"
	"github.com/petsera/go-petsera/backend"
	"github.com/petsera/go-petsera/localstate"
	"github.com/petsera/go-petsera/payments"
	"github.com/petsera/go-petsera/social"
)

// Options collects everything the app needs. Zero-value fields fall back to
// sensible defaults where one exists; Identity, Backend and Config do not.
type Options struct {
	Config   petsera.Config
	Identity petsera.IdentityProvider
	// Backend configures the API client. Its HTTPClient is replaced with one
	// that attaches the session credential through the authenticated
	// transport.
	Backend backend.Config
	Flow    *social.Flow
	// Payments configures the donation processor, which mints intents and
	// records contributions through the backend client.
	Payments payments.Config
	State    *localstate.Store
	Logger   petsera.Logger

	// ViewsDir holds the django templates. Defaults to "./views".
	ViewsDir string
}

// App owns the HTTP server and the auth core wiring.
type App struct {
	cfg    petsera.Config
	logger petsera.Logger

	store       *petsera.SessionStore
	tokens      *petsera.TokenCache
	credentials *petsera.Credentials
	roles       *petsera.RoleResolver
	routeGuard  *petsera.RouteGuard
	backend     *backend.Client
	flow        *social.Flow
	payments    *payments.Processor
	state       *localstate.Store

	srv router.Server[*fiber.App]
}

// New wires the full stack: session store over the provider's observer feed,
// token cache persisted through local state, authenticated transport for the
// backend client, credentials, role resolver and route guard.
func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = petsera.NewLogger()
	}

	store := petsera.NewSessionStore(opts.Identity.SessionChanges()).WithLogger(logger)
	tokens := petsera.NewTokenCache()

	if opts.State != nil {
		tokens.WithPersistence(func(token string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := opts.State.SetSessionToken(ctx, token); err != nil {
				logger.Warn("persisting session token failed: %s", err)
			}
		})
		if saved, err := opts.State.SessionToken(context.Background()); err == nil && saved != "" {
			tokens.Set(saved)
		}
	}

	backendCfg := opts.Backend
	if backendCfg.Logger == nil {
		backendCfg.Logger = logger
	}
	backendCfg.HTTPClient = &http.Client{
		Transport: petsera.NewTransport(store, tokens, opts.Identity).WithLogger(logger),
		Timeout:   15 * time.Second,
	}

	api, err := backend.New(backendCfg)
	if err != nil {
		return nil, err
	}

	paymentsCfg := opts.Payments
	if paymentsCfg.Logger == nil {
		paymentsCfg.Logger = logger
	}
	pay := payments.New(paymentsCfg, api, api)

	roles := petsera.NewRoleResolver(api).WithLogger(logger)

	credentials := petsera.NewCredentials(opts.Identity, api, api, store, tokens).
		WithLogger(logger).
		WithRoleResolver(roles)

	tokenService := petsera.NewTokenService(
		[]byte(opts.Config.GetSigningKey()),
		opts.Config.GetTokenExpiration(),
		opts.Config.GetIssuer(),
		opts.Config.GetAudience(),
		logger,
	)

	routeGuard, err := petsera.NewRouteGuard(opts.Config, tokenService)
	if err != nil {
		return nil, err
	}
	routeGuard.WithLogger(logger)
	routeGuard.WithRoleResolver(roles)

	viewsDir := opts.ViewsDir
	if viewsDir == "" {
		viewsDir = "./views"
	}
	engine := django.New(viewsDir, ".html")

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	app := &App{
		cfg:         opts.Config,
		logger:      logger,
		store:       store,
		tokens:      tokens,
		credentials: credentials,
		roles:       roles,
		routeGuard:  routeGuard,
		backend:     api,
		flow:        opts.Flow,
		payments:    pay,
		state:       opts.State,
		srv:         srv,
	}

	app.registerRoutes()

	return app, nil
}

// AuthenticatedClient returns an HTTP client whose requests carry the session
// credential, for callers outside the webapp wiring.
func (a *App) AuthenticatedClient(provider petsera.IdentityProvider) *http.Client {
	return &http.Client{
		Transport: petsera.NewTransport(a.store, a.tokens, provider).WithLogger(a.logger),
		Timeout:   15 * time.Second,
	}
}

func (a *App) registerRoutes() {
	r := a.srv.Router()

	auth := &AuthController{app: a}
	pages := &PagesController{app: a}

	r.Get("/", pages.Home)
	r.Get("/pets", pages.Pets)
	r.Get("/pets/:id", pages.PetDetail)
	r.Get("/donations", pages.Donations)
	r.Get("/donations/:id", pages.DonationDetail)
	r.Get("/access-denied", pages.AccessDenied)

	r.Get("/login", auth.LoginShow)
	r.Post("/login", auth.LoginPost)
	r.Get("/register", auth.RegisterShow)
	r.Post("/register", auth.RegisterPost)
	r.Get("/logout", auth.Logout)
	r.Get("/auth/:provider", auth.SocialBegin)
	r.Get("/auth/:provider/callback", auth.SocialCallback)
	r.Post("/theme", auth.ToggleTheme)

	protected := a.routeGuard.ProtectedRoute(nil)
	admin := a.routeGuard.AdminRoute(nil)

	r.Get("/dashboard", pages.Dashboard, protected)
	r.Post("/pets/:id/adopt", pages.RequestAdoption, protected)
	r.Post("/donations/:id/donate", pages.Donate, protected)
	r.Post("/donations/:id/pause", pages.PauseCampaign, protected)
	r.Post("/donations/refund/:id", pages.RefundDonation, protected)

	r.Get("/dashboard/admin", pages.AdminDashboard, admin)
	r.Post("/admin/users/:id/promote", pages.PromoteAdmin, admin)
	r.Post("/admin/users/:id/ban", pages.BanUser, admin)
	r.Post("/admin/pets/:id/delete", pages.DeletePet, admin)
	r.Post("/admin/donations/:id/delete", pages.DeleteCampaign, admin)
}

// Serve blocks listening on addr.
func (a *App) Serve(addr string) error {
	return a.srv.Serve(addr)
}

// Close stops the session store consumer.
func (a *App) Close() {
	a.store.Close()
}
