package petsera

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// DefaultExchangeTimeout bounds the backend token exchange so a hung backend
// cannot leave a credential operation spinning forever.
const DefaultExchangeTimeout = 10 * time.Second

// Credentials runs the explicit auth operations: register, sign in, social
// sign-in completion and sign out. Every operation that ends with a live
// principal also ends with a backend-recognized session credential, or rolls
// the provider session back so the two can never disagree.
type Credentials struct {
	provider  IdentityProvider
	exchange  TokenExchanger
	registrar UserRegistrar
	store     *SessionStore
	tokens    *TokenCache
	roles     *RoleResolver

	logger          Logger
	exchangeTimeout time.Duration
	now             func() time.Time
}

// NewCredentials wires the credential operations to their collaborators.
func NewCredentials(provider IdentityProvider, exchange TokenExchanger, registrar UserRegistrar, store *SessionStore, tokens *TokenCache) *Credentials {
	return &Credentials{
		provider:        provider,
		exchange:        exchange,
		registrar:       registrar,
		store:           store,
		tokens:          tokens,
		logger:          defLogger{},
		exchangeTimeout: DefaultExchangeTimeout,
		now:             time.Now,
	}
}

// WithLogger overrides the logger.
func (c *Credentials) WithLogger(l Logger) *Credentials {
	if l != nil {
		c.logger = l
	}
	return c
}

// WithRoleResolver attaches the resolver so sign-out can drop cached roles.
func (c *Credentials) WithRoleResolver(r *RoleResolver) *Credentials {
	c.roles = r
	return c
}

// WithExchangeTimeout overrides the backend exchange deadline.
func (c *Credentials) WithExchangeTimeout(d time.Duration) *Credentials {
	if d > 0 {
		c.exchangeTimeout = d
	}
	return c
}

// RegisterPayload is the registration form.
type RegisterPayload struct {
	Name            string `form:"name" json:"name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	PhotoURL        string `form:"photo_url" json:"photo_url"`
	Phone           string `form:"phone" json:"phone"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.PhotoURL, is.URL),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
	)
}

// SignInPayload is the email/password login form.
type SignInPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (p SignInPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
	)
}

// ValidateStringEquals returns an ozzo rule asserting equality with other.
func ValidateStringEquals(other string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != other {
			return errors.New("values do not match", errors.CategoryValidation)
		}
		return nil
	}
}

// ValidatePhoneNumber accepts empty values and otherwise requires a number
// phonenumbers can parse and verify.
func ValidatePhoneNumber(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return errors.New("invalid phone number", errors.CategoryValidation)
	}
	return nil
}

// Register creates the provider identity, applies the profile, exchanges the
// provider token for a backend credential and persists the user record. A
// failure after the provider account exists rolls the provider session back to
// anonymous so the UI never shows a signed-in user the backend does not know.
func (c *Credentials) Register(ctx context.Context, payload RegisterPayload) (*Principal, error) {
	if err := errors.ValidateWithOzzo(payload.Validate, "invalid registration payload"); err != nil {
		return nil, err
	}

	c.store.setLoading(true)
	defer c.store.setLoading(false)

	principal, err := c.provider.CreateUser(ctx, payload.Email, payload.Password)
	if err != nil {
		c.logger.Error("Register create user error: %s", err)
		return nil, err
	}

	if err := c.provider.UpdateProfile(ctx, Profile{
		DisplayName: payload.Name,
		PhotoURL:    payload.PhotoURL,
		Phone:       payload.Phone,
	}); err != nil {
		// profile decoration is best effort; the identity already exists
		c.logger.Warn("Register update profile error: %s", err)
	}
	principal.DisplayName = payload.Name
	principal.PhotoURL = payload.PhotoURL

	if err := c.establishSession(ctx, principal, true); err != nil {
		return nil, err
	}

	return principal, nil
}

// SignIn authenticates an existing email/password identity and exchanges its
// token with the backend.
func (c *Credentials) SignIn(ctx context.Context, payload SignInPayload) (*Principal, error) {
	if err := errors.ValidateWithOzzo(payload.Validate, "invalid login payload"); err != nil {
		return nil, err
	}

	c.store.setLoading(true)
	defer c.store.setLoading(false)

	principal, err := c.provider.SignInWithPassword(ctx, payload.Email, payload.Password)
	if err != nil {
		c.logger.Error("SignIn verify identity error: %s", err)
		if IsInvalidCredentials(err) || IsNetworkError(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CategoryAuth, "sign-in failed").
			WithTextCode(TextCodeInvalidCredentials).
			WithCode(errors.CodeUnauthorized)
	}

	if err := c.establishSession(ctx, principal, false); err != nil {
		return nil, err
	}

	return principal, nil
}

// SignInSocial finishes a social login: the social package has already walked
// the OAuth dance and handed back the provider's access token. Social logins
// always ensure a backend user record, since the account may be brand new.
func (c *Credentials) SignInSocial(ctx context.Context, providerName, accessToken string) (*Principal, error) {
	if providerName == "" || accessToken == "" {
		return nil, errors.New("missing social provider token", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	c.store.setLoading(true)
	defer c.store.setLoading(false)

	principal, err := c.provider.SignInWithIdP(ctx, providerName, accessToken)
	if err != nil {
		c.logger.Error("SignInSocial verify identity error: %s", err)
		return nil, err
	}

	if err := c.establishSession(ctx, principal, true); err != nil {
		return nil, err
	}

	return principal, nil
}

// SignOut terminates the session. The local state is always cleared first and
// unconditionally; remote invalidation is best effort, a dead backend must not
// trap the user in a signed-in UI.
func (c *Credentials) SignOut(ctx context.Context) error {
	c.tokens.Clear()
	if c.roles != nil {
		c.roles.Invalidate()
	}

	if err := c.exchange.Logout(ctx); err != nil {
		c.logger.Warn("SignOut backend logout error: %s", err)
	}

	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Warn("SignOut provider error: %s", err)
	}

	return nil
}

// establishSession trades the provider token for a backend credential and,
// when ensure is set, persists the user record. Any failure unwinds the
// provider session so the observed state returns to anonymous.
func (c *Credentials) establishSession(ctx context.Context, principal *Principal, ensure bool) error {
	idToken, err := c.provider.IDToken(ctx, true)
	if err != nil {
		c.logger.Error("Session id token error: %s", err)
		c.rollback(ctx)
		return errors.Wrap(err, errors.CategoryAuth, "backend token exchange failed").
			WithTextCode(TextCodeExchangeFailed).
			WithCode(errors.CodeUnauthorized)
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, c.exchangeTimeout)
	defer cancel()

	token, err := c.exchange.ExchangeToken(exchangeCtx, idToken)
	if err != nil {
		c.logger.Error("Session token exchange error: %s", err)
		c.rollback(ctx)
		return errors.Wrap(err, errors.CategoryAuth, "backend token exchange failed").
			WithTextCode(TextCodeExchangeFailed).
			WithCode(errors.CodeUnauthorized)
	}

	c.tokens.Set(token)

	if ensure {
		record := UserRecord{
			Email:     principal.Email,
			Name:      principal.DisplayName,
			PhotoURL:  principal.PhotoURL,
			Role:      string(RoleUser),
			CreatedAt: c.now().UTC(),
			LastLogIn: c.now().UTC(),
		}
		if err := c.registrar.EnsureUser(ctx, record); err != nil {
			c.logger.Error("Session ensure user error: %s", err)
			c.rollback(ctx)
			return errors.Wrap(err, errors.CategoryOperation, "persisting user record failed")
		}
	}

	// the provider emits the sign-in on its observer feed; do not resolve
	// until the store has applied it, or an immediate follow-up request
	// would go out without its bearer credential
	settleCtx, cancelSettle := context.WithTimeout(ctx, c.exchangeTimeout)
	defer cancelSettle()
	if err := c.store.WaitForPrincipal(settleCtx, principal.ID); err != nil {
		c.logger.Error("Session settle error: %s", err)
		c.rollback(ctx)
		return errors.Wrap(err, errors.CategoryAuth, "sign-in did not reach session state").
			WithTextCode(TextCodeNetworkUnavailable).
			WithCode(errors.CodeUnauthorized)
	}

	return nil
}

// rollback unwinds a half-finished login: provider session out, caches empty.
func (c *Credentials) rollback(ctx context.Context) {
	c.tokens.Clear()
	if c.roles != nil {
		c.roles.Invalidate()
	}
	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Warn("Rollback provider sign-out error: %s", err)
	}
}
