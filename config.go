package petsera

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ConfigOptions is the default Config implementation. Fields map one to one to
// environment variables; see LoadConfigFromEnv.
type ConfigOptions struct {
	SigningKey        string
	SigningMethod     string
	ContextKey        string
	TokenExpiration   int
	TokenLookup       string
	AuthScheme        string
	Issuer            string
	Audience          []string
	LoginRoute        string
	AccessDeniedRoute string
	ReturnToKey       string
}

func (c ConfigOptions) GetSigningKey() string        { return c.SigningKey }
func (c ConfigOptions) GetSigningMethod() string     { return c.SigningMethod }
func (c ConfigOptions) GetContextKey() string        { return c.ContextKey }
func (c ConfigOptions) GetTokenExpiration() int      { return c.TokenExpiration }
func (c ConfigOptions) GetTokenLookup() string       { return c.TokenLookup }
func (c ConfigOptions) GetAuthScheme() string        { return c.AuthScheme }
func (c ConfigOptions) GetIssuer() string            { return c.Issuer }
func (c ConfigOptions) GetAudience() []string        { return c.Audience }
func (c ConfigOptions) GetLoginRoute() string        { return c.LoginRoute }
func (c ConfigOptions) GetAccessDeniedRoute() string { return c.AccessDeniedRoute }
func (c ConfigOptions) GetReturnToKey() string       { return c.ReturnToKey }

// DefaultConfig returns options with every non-secret field filled in.
func DefaultConfig() ConfigOptions {
	return ConfigOptions{
		SigningMethod:     "HS256",
		ContextKey:        "session",
		TokenExpiration:   72,
		TokenLookup:       "header:Authorization,cookie:petsera_session",
		AuthScheme:        "Bearer",
		Issuer:            "petsera",
		Audience:          []string{"petsera"},
		LoginRoute:        "/login",
		AccessDeniedRoute: "/access-denied",
		ReturnToKey:       "return_to",
	}
}

// LoadConfigFromEnv loads a .env file if present and merges PETSERA_* env vars
// over the defaults. The signing key has no default on purpose; callers decide
// whether a missing key is fatal.
func LoadConfigFromEnv() ConfigOptions {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.SigningKey = os.Getenv("PETSERA_SIGNING_KEY")

	if v := os.Getenv("PETSERA_SIGNING_METHOD"); v != "" {
		cfg.SigningMethod = v
	}
	if v := os.Getenv("PETSERA_CONTEXT_KEY"); v != "" {
		cfg.ContextKey = v
	}
	if v := os.Getenv("PETSERA_TOKEN_EXPIRATION"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			cfg.TokenExpiration = hours
		}
	}
	if v := os.Getenv("PETSERA_TOKEN_LOOKUP"); v != "" {
		cfg.TokenLookup = v
	}
	if v := os.Getenv("PETSERA_AUTH_SCHEME"); v != "" {
		cfg.AuthScheme = v
	}
	if v := os.Getenv("PETSERA_ISSUER"); v != "" {
		cfg.Issuer = v
	}
	if v := os.Getenv("PETSERA_AUDIENCE"); v != "" {
		cfg.Audience = splitAndTrim(v)
	}
	if v := os.Getenv("PETSERA_LOGIN_ROUTE"); v != "" {
		cfg.LoginRoute = v
	}
	if v := os.Getenv("PETSERA_ACCESS_DENIED_ROUTE"); v != "" {
		cfg.AccessDeniedRoute = v
	}
	if v := os.Getenv("PETSERA_RETURN_TO_KEY"); v != "" {
		cfg.ReturnToKey = v
	}

	return cfg
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
