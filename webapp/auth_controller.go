package webapp

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"

	petsera "github.com/petsera/go-petsera"
)

// AuthController handles the login, registration, social and sign-out routes.
type AuthController struct {
	app *App
}

func (c *AuthController) LoginShow(ctx router.Context) error {
	return ctx.Render("login", router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

func (c *AuthController) LoginPost(ctx router.Context) error {
	payload := petsera.SignInPayload{}

	if err := ctx.Bind(&payload); err != nil {
		c.app.logger.Error("login parse payload: %s", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render("login", router.ViewContext{
			"record": payload,
		})
	}

	principal, err := c.app.credentials.SignIn(ctx.Context(), payload)
	if err != nil {
		message := "Sign in failed"
		if petsera.IsInvalidCredentials(err) {
			message = "Invalid email or password"
		} else if petsera.IsNetworkError(err) {
			message = "Network unavailable, please try again"
		}
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  message,
			"system_message": message,
		}).Render("login", router.ViewContext{
			"record": payload,
		})
	}

	c.app.routeGuard.SetSession(ctx, c.app.tokens.Get())

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Welcome back, " + principal.DisplayName,
	}).Redirect(c.app.routeGuard.GetRedirect(ctx, "/"), fiber.StatusSeeOther)
}

func (c *AuthController) RegisterShow(ctx router.Context) error {
	return ctx.Render("register", router.ViewContext{
		"errors": map[string]string{},
		"record": petsera.RegisterPayload{},
	})
}

func (c *AuthController) RegisterPost(ctx router.Context) error {
	payload := petsera.RegisterPayload{}

	if err := ctx.Bind(&payload); err != nil {
		c.app.logger.Error("register parse payload: %s", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render("register", router.ViewContext{
			"record": payload,
		})
	}

	if _, err := c.app.credentials.Register(ctx.Context(), payload); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Registration failed",
		}).Render("register", router.ViewContext{
			"record": payload,
		})
	}

	c.app.routeGuard.SetSession(ctx, c.app.tokens.Get())

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Welcome to Petsera",
	}).Redirect("/", fiber.StatusSeeOther)
}

func (c *AuthController) Logout(ctx router.Context) error {
	if err := c.app.credentials.SignOut(ctx.Context()); err != nil {
		// local state is already cleared; nothing actionable for the user
		c.app.logger.Warn("sign out: %s", err)
	}

	c.app.routeGuard.ClearSession(ctx)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Signed out",
	}).Redirect("/login", fiber.StatusSeeOther)
}

// SocialBegin redirects to the provider's consent screen.
func (c *AuthController) SocialBegin(ctx router.Context) error {
	providerName := ctx.Param("provider")

	redirect, err := c.app.flow.Begin(ctx.Context(), providerName, ctx.Query("return_to", "/"))
	if err != nil {
		message := "Social sign-in unavailable"
		if petsera.IsFlowInProgress(err) {
			message = "A sign-in is already in progress"
		}
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  message,
			"system_message": message,
		}).Redirect("/login", fiber.StatusSeeOther)
	}

	return ctx.Redirect(redirect.URL, fiber.StatusFound)
}

// SocialCallback completes the provider dance and signs the principal in.
// A canceled consent screen is a non-event: back to login, no error banner.
func (c *AuthController) SocialCallback(ctx router.Context) error {
	providerName := ctx.Param("provider")

	completion, err := c.app.flow.Complete(
		ctx.Context(),
		providerName,
		ctx.Query("code", ""),
		ctx.Query("state", ""),
		ctx.Query("error", ""),
	)
	if err != nil {
		if petsera.IsFlowCanceled(err) {
			return ctx.Redirect("/login", fiber.StatusSeeOther)
		}
		c.app.logger.Error("social callback: %s", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  "Social sign-in failed",
			"system_message": "Social sign-in failed",
		}).Redirect("/login", fiber.StatusSeeOther)
	}

	if _, err := c.app.credentials.SignInSocial(ctx.Context(), completion.Provider, completion.AccessToken); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  "Social sign-in failed",
			"system_message": "Social sign-in failed",
		}).Redirect("/login", fiber.StatusSeeOther)
	}

	c.app.routeGuard.SetSession(ctx, c.app.tokens.Get())

	target := c.app.routeGuard.GetRedirect(ctx, completion.RedirectURL)
	return ctx.Redirect(target, fiber.StatusSeeOther)
}

// ToggleTheme flips the persisted UI theme.
func (c *AuthController) ToggleTheme(ctx router.Context) error {
	if c.app.state == nil {
		return ctx.Redirect("/", fiber.StatusSeeOther)
	}

	theme, err := c.app.state.Theme(ctx.Context())
	if err != nil {
		c.app.logger.Warn("reading theme: %s", err)
	}

	next := "dark"
	if theme == "dark" {
		next = "light"
	}

	if err := c.app.state.SetTheme(ctx.Context(), next); err != nil {
		c.app.logger.Warn("storing theme: %s", err)
	}

	return ctx.Redirect(ctx.Query("return_to", "/"), fiber.StatusSeeOther)
}
