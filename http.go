package petsera

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/petsera/go-petsera/middleware/guard"
)

// RouteGuard is the server-side face of the route guards: it validates the
// session credential on incoming requests and enforces the same decisions the
// client-side Guard makes, with redirects instead of render gates.
type RouteGuard struct {
	cfg              Config
	tokens           TokenService
	roles            *RoleResolver
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

// NewRouteGuard builds a guard from the shared config and token service.
func NewRouteGuard(cfg Config, tokens TokenService) (*RouteGuard, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	g := &RouteGuard{
		cfg:            cfg,
		tokens:         tokens,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	g.ErrorHandler = g.defaultErrHandler
	g.AuthErrorHandler = g.defaultAuthErrHandler

	return g, nil
}

// WithLogger overrides the logger.
func (g *RouteGuard) WithLogger(l Logger) *RouteGuard {
	if l != nil {
		g.Logger = l
	}
	return g
}

// WithRoleResolver enables fresh role lookups on admin routes instead of
// trusting the role claim minted at exchange time.
func (g *RouteGuard) WithRoleResolver(r *RoleResolver) *RouteGuard {
	g.roles = r
	return g
}

func (g *RouteGuard) GetCookieDuration() time.Duration {
	return g.cookieDuration
}

// guardValidator bridges TokenService to the middleware's local interface.
type guardValidator struct {
	tokens TokenService
}

func (v guardValidator) Validate(raw string) (guard.Claims, error) {
	claims, err := v.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ProtectedRoute requires a valid session credential.
func (g *RouteGuard) ProtectedRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = g.AuthErrorHandler
	}
	return guard.New(guard.Config{
		ErrorHandler:    errorHandler,
		Validator:       guardValidator{g.tokens},
		ContextKey:      g.cfg.GetContextKey(),
		TokenLookup:     g.cfg.GetTokenLookup(),
		AuthScheme:      g.cfg.GetAuthScheme(),
		ContextEnricher: g.enrichContext,
	})
}

// AdminRoute requires a valid session credential whose role resolves to
// admin. A signed-in non-admin lands on the access-denied page with no
// return-to cookie; signing in again would not change the verdict.
func (g *RouteGuard) AdminRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = g.AuthErrorHandler
	}
	return guard.New(guard.Config{
		ErrorHandler: errorHandler,
		Validator:    guardValidator{g.tokens},
		ContextKey:   g.cfg.GetContextKey(),
		TokenLookup:  g.cfg.GetTokenLookup(),
		AuthScheme:   g.cfg.GetAuthScheme(),
		RequireAdmin: true,
		RoleChecker:  g.adminChecker(),
		AdminErrorHandler: func(c router.Context, err error) error {
			g.Logger.Info("Admin route denied for %s", c.OriginalURL())
			statusCode := http.StatusSeeOther
			if c.Method() == string(router.GET) {
				statusCode = http.StatusFound
			}
			return c.Redirect(g.cfg.GetAccessDeniedRoute(), statusCode)
		},
		ContextEnricher: g.enrichContext,
	})
}

// adminChecker re-resolves the role from the backend when a resolver is
// attached; otherwise the role claim decides.
func (g *RouteGuard) adminChecker() guard.RoleChecker {
	if g.roles == nil {
		return nil
	}
	return func(c router.Context, claims guard.Claims) bool {
		return g.roles.Resolve(c.Context(), claims.UserEmail()).IsAdmin()
	}
}

func (g *RouteGuard) enrichContext(c context.Context, claims guard.Claims) context.Context {
	if sc, ok := claims.(*SessionClaims); ok {
		return WithClaimsContext(c, sc)
	}
	return c
}

// SetSession stores the exchanged credential in the session cookie.
func (g *RouteGuard) SetSession(ctx router.Context, token string) {
	g.setCookieToken(ctx, token, g.cookieDuration)
}

// ClearSession removes the session cookie.
func (g *RouteGuard) ClearSession(ctx router.Context) {
	g.cookieDel(ctx, sessionCookieName(g.cfg))
}

// GetRedirect consumes the return-to cookie set when an unauthenticated
// request was bounced to login. The cookie is deleted on read so a stored
// path is honored exactly once.
func (g *RouteGuard) GetRedirect(ctx router.Context, def ...string) string {
	returnTo := g.cfg.GetReturnToKey()
	r := ctx.Cookies(returnTo)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return "/"
	}
	g.cookieDel(ctx, returnTo)
	return r
}

// SetRedirect remembers the requested path so a successful login can resume it.
func (g *RouteGuard) SetRedirect(ctx router.Context) {
	returnTo := g.cfg.GetReturnToKey()

	g.Logger.Info("Setting return-to cookie %s=%s", returnTo, ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     returnTo,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     sessionCookieName(g.cfg),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	g.Logger.Info(
		"Authentication error %s (%s), redirecting to login from %s",
		richErr.Message,
		richErr.TextCode,
		c.OriginalURL(),
	)

	g.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(g.cfg.GetLoginRoute(), statusCode)
}

func (g *RouteGuard) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	g.Logger.Info(
		"Middleware error handler %s (%s): %s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return g.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}

// sessionCookieName derives the cookie name from the token lookup spec so the
// set and read sides can never drift apart.
func sessionCookieName(cfg Config) string {
	for _, part := range splitAndTrim(cfg.GetTokenLookup()) {
		if len(part) > 7 && part[:7] == "cookie:" {
			return part[7:]
		}
	}
	return cfg.GetContextKey()
}
