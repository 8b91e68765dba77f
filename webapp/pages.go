package webapp

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"

	petsera "github.com/petsera/go-petsera"
	"github.com/petsera/go-petsera/backend"
	"github.com/petsera/go-petsera/payments"
)

// PagesController renders the public catalog pages and the guarded user and
// admin dashboards.
type PagesController struct {
	app *App
}

func (c *PagesController) claims(ctx router.Context) (*petsera.SessionClaims, bool) {
	return petsera.GetRouterClaims(ctx, c.app.cfg.GetContextKey())
}

func (c *PagesController) renderError(ctx router.Context, view string, err error) error {
	c.app.logger.Error("page %s: %s", ctx.Path(), err)
	message := "Something went wrong"
	if petsera.IsNetworkError(err) {
		message = "The service is unreachable, please try again"
	}
	return flash.WithError(ctx, router.ViewContext{
		"error_message":  message,
		"system_message": message,
	}).Render(view, router.ViewContext{})
}

func (c *PagesController) Home(ctx router.Context) error {
	pets, err := c.app.backend.ListPets(ctx.Context(), backend.PetFilter{Limit: 6})
	if err != nil {
		return c.renderError(ctx, "home", err)
	}

	campaigns, err := c.app.backend.RecommendedCampaigns(ctx.Context())
	if err != nil {
		c.app.logger.Warn("recommended campaigns: %s", err)
	}

	return ctx.Render("home", router.ViewContext{
		"pets":      pets,
		"campaigns": campaigns,
	})
}

func (c *PagesController) Pets(ctx router.Context) error {
	filter := backend.PetFilter{
		Category: ctx.Query("category", ""),
		Search:   ctx.Query("search", ""),
		Page:     queryInt(ctx, "page", 1),
		Limit:    queryInt(ctx, "limit", 12),
	}

	pets, err := c.app.backend.ListPets(ctx.Context(), filter)
	if err != nil {
		return c.renderError(ctx, "pets", err)
	}

	return ctx.Render("pets", router.ViewContext{
		"pets":     pets,
		"category": filter.Category,
		"search":   filter.Search,
		"page":     filter.Page,
	})
}

func (c *PagesController) PetDetail(ctx router.Context) error {
	pet, err := c.app.backend.GetPet(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return c.renderError(ctx, "pets", err)
	}

	return ctx.Render("pet_detail", router.ViewContext{
		"pet": pet,
	})
}

func (c *PagesController) Donations(ctx router.Context) error {
	campaigns, err := c.app.backend.ListCampaigns(ctx.Context(), queryInt(ctx, "page", 1), queryInt(ctx, "limit", 12))
	if err != nil {
		return c.renderError(ctx, "donations", err)
	}

	return ctx.Render("donations", router.ViewContext{
		"campaigns": campaigns,
	})
}

func (c *PagesController) DonationDetail(ctx router.Context) error {
	campaign, err := c.app.backend.GetCampaign(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return c.renderError(ctx, "donations", err)
	}

	recommended, err := c.app.backend.RecommendedCampaigns(ctx.Context())
	if err != nil {
		c.app.logger.Warn("recommended campaigns: %s", err)
	}

	return ctx.Render("donation_detail", router.ViewContext{
		"campaign":    campaign,
		"recommended": recommended,
	})
}

func (c *PagesController) AccessDenied(ctx router.Context) error {
	return ctx.Status(fiber.StatusForbidden).Render("access_denied", router.ViewContext{})
}

// Dashboard is the signed-in user's overview: their listings, their
// campaigns, and their contribution history.
func (c *PagesController) Dashboard(ctx router.Context) error {
	claims, ok := c.claims(ctx)
	if !ok {
		return ctx.Redirect(c.app.cfg.GetLoginRoute(), fiber.StatusSeeOther)
	}

	pets, err := c.app.backend.ListPets(ctx.Context(), backend.PetFilter{OwnerEmail: claims.UserEmail()})
	if err != nil {
		return c.renderError(ctx, "dashboard", err)
	}

	campaigns, err := c.app.backend.MyCampaigns(ctx.Context())
	if err != nil {
		c.app.logger.Warn("my campaigns: %s", err)
	}

	donations, err := c.app.backend.MyDonations(ctx.Context())
	if err != nil {
		c.app.logger.Warn("my donations: %s", err)
	}

	return ctx.Render("dashboard", router.ViewContext{
		"user":      claims.Principal(),
		"pets":      pets,
		"campaigns": campaigns,
		"donations": donations,
	})
}

type adoptionForm struct {
	Phone   string `json:"phone" form:"phone"`
	Address string `json:"address" form:"address"`
}

func (c *PagesController) RequestAdoption(ctx router.Context) error {
	claims, ok := c.claims(ctx)
	if !ok {
		return ctx.Redirect(c.app.cfg.GetLoginRoute(), fiber.StatusSeeOther)
	}

	petID := ctx.Param("id")

	pet, err := c.app.backend.GetPet(ctx.Context(), petID)
	if err != nil {
		return c.renderError(ctx, "pets", err)
	}

	form := adoptionForm{}
	if err := ctx.Bind(&form); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render("pet_detail", router.ViewContext{
			"pet": pet,
		})
	}

	request := backend.AdoptionRequest{
		PetID:    petID,
		PetName:  pet.Name,
		ImageURL: pet.ImageURL,
		Email:    claims.UserEmail(),
		Name:     claims.DisplayName,
		Phone:    form.Phone,
		Address:  form.Address,
	}

	if err := c.app.backend.RequestAdoption(ctx.Context(), request); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Adoption request failed",
		}).Render("pet_detail", router.ViewContext{
			"pet": pet,
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Adoption request for " + pet.Name + " submitted",
	}).Redirect("/pets/"+petID, fiber.StatusSeeOther)
}

type donateForm struct {
	// Amount is in whole currency units as typed by the donor.
	Amount          float64 `json:"amount" form:"amount"`
	PaymentMethodID string  `json:"paymentMethodId" form:"paymentMethodId"`
}

func (c *PagesController) Donate(ctx router.Context) error {
	claims, ok := c.claims(ctx)
	if !ok {
		return ctx.Redirect(c.app.cfg.GetLoginRoute(), fiber.StatusSeeOther)
	}

	campaignID := ctx.Param("id")

	campaign, err := c.app.backend.GetCampaign(ctx.Context(), campaignID)
	if err != nil {
		return c.renderError(ctx, "donations", err)
	}

	if campaign.Paused {
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "This campaign is paused and not accepting donations",
		}).Redirect("/donations/"+campaignID, fiber.StatusSeeOther)
	}

	form := donateForm{}
	if err := ctx.Bind(&form); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Redirect("/donations/"+campaignID, fiber.StatusSeeOther)
	}

	intent := payments.DonationIntent{
		CampaignID:      campaignID,
		PetName:         campaign.PetName,
		ImageURL:        campaign.ImageURL,
		AmountCents:     int64(form.Amount * 100),
		DonorEmail:      claims.UserEmail(),
		PaymentMethodID: form.PaymentMethodID,
	}

	if err := c.app.payments.Donate(ctx.Context(), intent); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Donation failed",
		}).Redirect("/donations/"+campaignID, fiber.StatusSeeOther)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Thank you for supporting " + campaign.PetName,
	}).Redirect("/donations/"+campaignID, fiber.StatusSeeOther)
}

// PauseCampaign toggles whether a campaign accepts new donations. Owner only;
// the backend enforces ownership.
func (c *PagesController) PauseCampaign(ctx router.Context) error {
	campaignID := ctx.Param("id")

	campaign, err := c.app.backend.GetCampaign(ctx.Context(), campaignID)
	if err != nil {
		return c.renderError(ctx, "donations", err)
	}

	if err := c.app.backend.SetCampaignPaused(ctx.Context(), campaignID, !campaign.Paused); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Could not update the campaign",
		}).Redirect("/dashboard", fiber.StatusSeeOther)
	}

	return ctx.Redirect("/dashboard", fiber.StatusSeeOther)
}

func (c *PagesController) RefundDonation(ctx router.Context) error {
	if err := c.app.backend.RefundDonation(ctx.Context(), ctx.Param("id")); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Refund failed",
		}).Redirect("/dashboard", fiber.StatusSeeOther)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Donation refunded",
	}).Redirect("/dashboard", fiber.StatusSeeOther)
}

func (c *PagesController) AdminDashboard(ctx router.Context) error {
	stats, err := c.app.backend.GetDashboardStats(ctx.Context())
	if err != nil {
		return c.renderError(ctx, "admin_dashboard", err)
	}

	users, err := c.app.backend.ListUsers(ctx.Context())
	if err != nil {
		c.app.logger.Warn("list users: %s", err)
	}

	pets, err := c.app.backend.ListPets(ctx.Context(), backend.PetFilter{})
	if err != nil {
		c.app.logger.Warn("list pets: %s", err)
	}

	campaigns, err := c.app.backend.AllCampaigns(ctx.Context())
	if err != nil {
		c.app.logger.Warn("all campaigns: %s", err)
	}

	return ctx.Render("admin_dashboard", router.ViewContext{
		"stats":     stats,
		"users":     users,
		"pets":      pets,
		"campaigns": campaigns,
	})
}

func (c *PagesController) PromoteAdmin(ctx router.Context) error {
	userID := ctx.Param("id")

	if err := c.app.backend.PromoteAdmin(ctx.Context(), userID); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Could not promote user",
		}).Redirect("/dashboard/admin", fiber.StatusSeeOther)
	}

	// cached roles for this user are now stale
	if email := ctx.Query("email", ""); email != "" {
		c.app.roles.InvalidateEmail(email)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "User promoted to admin",
	}).Redirect("/dashboard/admin", fiber.StatusSeeOther)
}

func (c *PagesController) BanUser(ctx router.Context) error {
	if err := c.app.backend.BanUser(ctx.Context(), ctx.Param("id")); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Could not ban user",
		}).Redirect("/dashboard/admin", fiber.StatusSeeOther)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "User banned",
	}).Redirect("/dashboard/admin", fiber.StatusSeeOther)
}

func (c *PagesController) DeletePet(ctx router.Context) error {
	if err := c.app.backend.DeletePet(ctx.Context(), ctx.Param("id")); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Could not delete pet",
		}).Redirect("/dashboard/admin", fiber.StatusSeeOther)
	}

	return ctx.Redirect("/dashboard/admin", fiber.StatusSeeOther)
}

func (c *PagesController) DeleteCampaign(ctx router.Context) error {
	if err := c.app.backend.DeleteCampaign(ctx.Context(), ctx.Param("id")); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Could not delete campaign",
		}).Redirect("/dashboard/admin", fiber.StatusSeeOther)
	}

	return ctx.Redirect("/dashboard/admin", fiber.StatusSeeOther)
}

func queryInt(ctx router.Context, key string, def int) int {
	raw := ctx.Query(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
