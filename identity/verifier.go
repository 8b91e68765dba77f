package identity

import (
	"fmt"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"

	petsera "github.com/petsera/go-petsera"
)

// Verifier checks provider-issued ID tokens against the service's published
// JWK set. The backend uses it to authenticate the exchange endpoint; the
// client never needs it.
type Verifier struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
}

// NewVerifier fetches the JWK set and keeps it refreshed in the background.
func NewVerifier(jwksURL, issuer, audience string) (*Verifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWK set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWK set: %w", err)
	}

	return &Verifier{
		jwks:     jwks,
		issuer:   issuer,
		audience: audience,
	}, nil
}

// Close stops the background refresh.
func (v *Verifier) Close() {
	v.jwks.EndBackground()
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email          string `json:"email"`
	Name           string `json:"name"`
	Picture        string `json:"picture"`
	SignInProvider string `json:"sign_in_provider,omitempty"`
}

// Verify parses and validates an ID token, returning the principal it vouches
// for.
func (v *Verifier) Verify(tokenString string) (*petsera.Principal, error) {
	opts := make([]jwt.ParserOption, 0, 2)
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &idTokenClaims{}, v.jwks.Keyfunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, petsera.ErrTokenExpired
		}
		return nil, errors.Wrap(err, errors.CategoryAuth, "invalid identity token").
			WithCode(errors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*idTokenClaims)
	if !ok || !token.Valid {
		return nil, petsera.ErrUnableToDecodeSession
	}

	return &petsera.Principal{
		ID:            claims.Subject,
		Email:         claims.Email,
		DisplayName:   claims.Name,
		PhotoURL:      claims.Picture,
		TokenProvider: claims.SignInProvider,
	}, nil
}
