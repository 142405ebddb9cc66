package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

const MessagePasswordChanged = "Password changed successfully"

// ProfileController serves /api/profile for the calling identity
type ProfileController struct {
	Accounts *AccountService
	Logger   Logger
}

func (p *ProfileController) Get(c router.Context) error {
	identity, ok := IdentityFromContext(c.Context())
	if !ok {
		return ErrUnauthenticated
	}

	user, err := p.Accounts.GetUser(c.Context(), identity.Subject)
	if err != nil {
		return err
	}
	return c.JSON(fiber.StatusOK, user)
}

func (p *ProfileController) Update(c router.Context) error {
	identity, ok := IdentityFromContext(c.Context())
	if !ok {
		return ErrUnauthenticated
	}

	payload := new(ProfileInput)
	if err := c.Bind(payload); err != nil {
		return badRequest("invalid request body")
	}

	user, err := p.Accounts.UpdateProfile(c.Context(), identity.Subject, *payload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.StatusOK, user)
}

func (p *ProfileController) ChangePassword(c router.Context) error {
	identity, ok := IdentityFromContext(c.Context())
	if !ok {
		return ErrUnauthenticated
	}

	payload := new(ChangePasswordInput)
	if err := c.Bind(payload); err != nil {
		return badRequest("invalid request body")
	}

	if err := p.Accounts.ChangePassword(c.Context(), identity.Subject, *payload); err != nil {
		return err
	}

	return c.JSON(fiber.StatusOK, fiber.Map{"message": MessagePasswordChanged})
}
